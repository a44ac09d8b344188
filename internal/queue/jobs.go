package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobsKey is the Redis list holding pending generation jobs.
const JobsKey = "generation-jobs"

// JobQueue is a FIFO of generation jobs shared by the api and the workers.
type JobQueue struct {
	client *Client
}

func NewJobQueue(client *Client) *JobQueue {
	return &JobQueue{
		client: client,
	}
}

// Enqueue adds a job to the end of the queue
func (q *JobQueue) Enqueue(ctx context.Context, job *Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	data, err := job.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize job: %w", err)
	}

	if err := q.client.rdb.RPush(ctx, JobsKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	q.client.logger.Debug("Job enqueued", "run_id", job.RunID)
	return nil
}

// Dequeue removes and returns the next job.
// Returns nil if queue is empty
func (q *JobQueue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.rdb.LPop(ctx, JobsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Queue is empty
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	job, err := FromJSON([]byte(result))
	if err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return job, nil
}

// BlockingDequeue waits up to timeout for a job; 0 waits forever.
// Returns nil, nil when the timeout passes with nothing queued.
func (q *JobQueue) BlockingDequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, JobsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue job: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BLPop result: %v", result)
	}

	job, err := FromJSON([]byte(result[1]))
	if err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return job, nil
}

// Depth returns the number of queued jobs
func (q *JobQueue) Depth(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, JobsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}
