package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/internal/storage"
)

// DefaultGenerateTimeout bounds one full trip through the pipeline.
const DefaultGenerateTimeout = 10 * time.Minute

// ErrRunNotFound is returned when a job names a run that is no longer stored.
var ErrRunNotFound = errors.New("run not found")

// Processor runs generation for a stored run. It's used by both the HTTP
// handler (synchronously) and the worker (asynchronously).
type Processor struct {
	storage  storage.Storage
	pipeline *pipeline.Pipeline
	timeout  time.Duration
	logger   *slog.Logger
}

// NewProcessor creates a processor. A zero timeout uses DefaultGenerateTimeout.
func NewProcessor(store storage.Storage, p *pipeline.Pipeline, timeout time.Duration, logger *slog.Logger) *Processor {
	if timeout <= 0 {
		timeout = DefaultGenerateTimeout
	}
	return &Processor{
		storage:  store,
		pipeline: p,
		timeout:  timeout,
		logger:   logger,
	}
}

// Process saves run as running, executes the pipeline and saves the final
// state. A pipeline failure is recorded on the run and also returned.
func (p *Processor) Process(ctx context.Context, run *pipeline.Run) error {
	run.Status = pipeline.StatusRunning
	run.UpdatedAt = time.Now()
	if err := p.storage.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	start := time.Now()
	runErr := p.pipeline.Execute(genCtx, run)

	// The caller's context may already be done; the final state is still saved.
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer saveCancel()
	if err := p.storage.SaveRun(saveCtx, run); err != nil {
		p.logger.Error("Failed to save finished run", "error", err, "run_id", run.ID)
		if runErr == nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}

	p.logger.Info("Run processed",
		"run_id", run.ID,
		"status", run.Status,
		"duration_ms", time.Since(start).Milliseconds())
	return runErr
}

// ProcessByID loads a queued run and processes it. Runs that already reached
// a final status are left alone.
func (p *Processor) ProcessByID(ctx context.Context, id uuid.UUID) (*pipeline.Run, error) {
	run, err := p.storage.LoadRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	if run == nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if run.Done() {
		p.logger.Info("Run already finished, skipping", "run_id", id, "status", run.Status)
		return run, nil
	}
	return run, p.Process(ctx, run)
}
