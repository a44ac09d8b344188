package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job asks a worker to run generation for a queued run.
type Job struct {
	RunID      uuid.UUID `json:"run_id"`
	UserInput  string    `json:"user_input"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToJSON serializes the job for Redis storage
func (j *Job) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// FromJSON deserializes a job read from Redis
func FromJSON(data []byte) (*Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	if j.RunID == uuid.Nil {
		return nil, fmt.Errorf("job has no run_id")
	}
	return &j, nil
}
