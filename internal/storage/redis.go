package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/redis/go-redis/v9"
)

const (
	runKeyPrefix  = "run:"
	DefaultRunTTL = 24 * time.Hour
)

// RedisStorage implements the Storage interface using Redis for runs
// and the filesystem for generated scripts
type RedisStorage struct {
	client    *redis.Client
	logger    *slog.Logger
	outputDir string
	runTTL    time.Duration
}

// Ensure RedisStorage implements Storage interface
var _ Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. The connection is not
// checked; call WaitForConnection or Ping.
func NewRedisStorage(redisURL, outputDir string, runTTL time.Duration, logger *slog.Logger) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	if outputDir == "" {
		outputDir = "./output"
	}
	if runTTL <= 0 {
		runTTL = DefaultRunTTL
	}

	return &RedisStorage{
		client:    redis.NewClient(opt),
		logger:    logger,
		outputDir: outputDir,
		runTTL:    runTTL,
	}, nil
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	cmd := r.client.Ping(ctx)
	if err := cmd.Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Run operations (Redis-backed)

func runKey(id uuid.UUID) string {
	return runKeyPrefix + id.String()
}

func (r *RedisStorage) SaveRun(ctx context.Context, run *pipeline.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now()

	data, err := json.Marshal(run)
	if err != nil {
		r.logger.Error("Failed to marshal run", "run_id", run.ID, "error", err)
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	if err := r.client.Set(ctx, runKey(run.ID), data, r.runTTL).Err(); err != nil {
		r.logger.Error("Failed to save run", "run_id", run.ID, "error", err)
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadRun(ctx context.Context, id uuid.UUID) (*pipeline.Run, error) {
	data, err := r.client.Get(ctx, runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.logger.Debug("Run not found", "run_id", id)
			return nil, nil
		}
		r.logger.Error("Failed to load run", "run_id", id, "error", err)
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var run pipeline.Run
	if err := json.Unmarshal(data, &run); err != nil {
		r.logger.Error("Failed to unmarshal run", "run_id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &run, nil
}
