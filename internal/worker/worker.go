package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/internal/queue"
	"github.com/redis/go-redis/v9"
)

const (
	workerTimeout = 5 * time.Second
	lockMargin    = 30 * time.Second
)

// releaseLockScript deletes the lock only if this worker still owns it.
var releaseLockScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Worker processes generation jobs from the queue
type Worker struct {
	id          string
	queue       *queue.JobQueue
	processor   *Processor
	redisClient *redis.Client
	lockTTL     time.Duration
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(jobs *queue.JobQueue, processor *Processor, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       jobs,
		processor:   processor,
		redisClient: redisClient,
		lockTTL:     processor.timeout + lockMargin,
		log:         log.With("worker_id", workerID),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the worker id used as the lock owner.
func (w *Worker) ID() string {
	return w.id
}

// Start begins processing jobs from the queue. It returns after Stop.
func (w *Worker) Start() error {
	w.log.Info("Worker starting")

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down")
			return nil
		default:
			if err := w.processNextJob(); err != nil {
				w.log.Error("Error processing job", "error", err)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested")
	w.cancel()
}

// processNextJob pulls the next job from the queue and processes it
func (w *Worker) processNextJob() error {
	// Block waiting for the next job; the timeout lets Start notice shutdown.
	job, err := w.queue.BlockingDequeue(w.ctx, workerTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to dequeue job: %w", err)
	}
	if job == nil {
		return nil
	}
	return w.handleJob(job)
}

// handleJob runs one job under the run lock.
func (w *Worker) handleJob(job *queue.Job) error {
	log := w.log.With("run_id", job.RunID)
	log.Info("Received job from queue", "queued_for_ms", time.Since(job.EnqueuedAt).Milliseconds())

	locked, err := w.acquireRunLock(job.RunID)
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		// Another worker already owns this run; the duplicate job is dropped.
		log.Info("Run already locked, dropping duplicate job")
		return nil
	}
	defer w.releaseRunLock(job.RunID)

	_, err = w.processor.ProcessByID(w.ctx, job.RunID)
	if errors.Is(err, ErrRunNotFound) {
		// The stored run expired while queued; rebuild it from the job.
		log.Warn("Run missing from storage, recreating from job")
		run := pipeline.NewRun(job.UserInput)
		run.ID = job.RunID
		if !job.EnqueuedAt.IsZero() {
			run.CreatedAt = job.EnqueuedAt
		}
		err = w.processor.Process(w.ctx, run)
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", job.RunID, err)
	}
	return nil
}

func runLockKey(id uuid.UUID) string {
	return "run-lock:" + id.String()
}

// acquireRunLock attempts to acquire a lock for a run.
// Returns true if lock was acquired, false if already locked
func (w *Worker) acquireRunLock(id uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, runLockKey(id), w.id, w.lockTTL).Result()
}

// releaseRunLock releases the lock for a run
func (w *Worker) releaseRunLock(id uuid.UUID) {
	// Released even during shutdown so the run is not blocked until the TTL.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), 5*time.Second)
	defer cancel()
	if err := releaseLockScript.Run(ctx, w.redisClient, []string{runLockKey(id)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release run lock", "error", err, "run_id", id)
	}
}
