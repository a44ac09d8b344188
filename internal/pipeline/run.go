package pipeline

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stage-forge/pkg/layout"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Script file names written for every completed run.
const (
	StageScript = "Stage.lua"
	CastScript  = "Cast.lua"
	MainScript  = "main.lua"
)

// Run is one trip through the generation chain, persisted between the api
// and the worker.
type Run struct {
	ID        uuid.UUID `json:"id"`
	UserInput string    `json:"user_input"`
	Status    Status    `json:"status"`

	Blueprint      json.RawMessage          `json:"blueprint,omitempty"`
	Constraints    *layout.Constraints      `json:"constraints,omitempty"`
	Layout         *layout.Layout           `json:"layout,omitempty"`
	Validation     *layout.ValidationResult `json:"validation,omitempty"`
	LayoutAttempts int                      `json:"layout_attempts"`
	CastingDesign  json.RawMessage          `json:"casting_design,omitempty"`

	StageLua string `json:"stage_lua,omitempty"`
	CastLua  string `json:"cast_lua,omitempty"`
	MainLua  string `json:"main_lua,omitempty"`
	// Warnings are non-fatal problems, such as a Stage.lua syntax error.
	Warnings   []string          `json:"warnings,omitempty"`
	SavedFiles map[string]string `json:"saved_files,omitempty"`

	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRun creates a queued run with a fresh id.
func NewRun(userInput string) *Run {
	now := time.Now()
	return &Run{
		ID:        uuid.New(),
		UserInput: userInput,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Done reports whether the run reached a final status.
func (r *Run) Done() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// Scripts returns the generated scripts keyed by file name.
func (r *Run) Scripts() map[string]string {
	return map[string]string{
		StageScript: r.StageLua,
		CastScript:  r.CastLua,
		MainScript:  r.MainLua,
	}
}

func (r *Run) finish(status Status, errMsg string) {
	now := time.Now()
	r.Status = status
	r.Error = errMsg
	r.UpdatedAt = now
	r.CompletedAt = &now
}
