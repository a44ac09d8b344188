package storage

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/jwebster45206/stage-forge/internal/pipeline"
)

//go:generate mockgen -destination=mocks/mock_storage.go -package=mocks -source=storage.go

// ErrScriptNotFound is returned when a requested script file does not exist
// or its name is not an allowed script name.
var ErrScriptNotFound = errors.New("script not found")

// ScriptFile describes one generated script on disk.
type ScriptFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Path string `json:"path"` // download route, not a filesystem path
}

// Storage combines run persistence (Redis) with generated script files (filesystem).
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Run operations (Redis-backed). LoadRun returns nil, nil when the run
	// does not exist or has expired.
	SaveRun(ctx context.Context, run *pipeline.Run) error
	LoadRun(ctx context.Context, id uuid.UUID) (*pipeline.Run, error)

	// Script operations (filesystem-backed)
	WriteScripts(ctx context.Context, scripts map[string]string) (map[string]string, error)
	ListScripts(ctx context.Context) ([]ScriptFile, error)
	OpenScript(ctx context.Context, name string) (io.ReadCloser, error)
}
