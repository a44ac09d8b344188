package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/internal/queue"
	"github.com/jwebster45206/stage-forge/internal/storage"
	"github.com/jwebster45206/stage-forge/pkg/chat"
)

// RunProcessor executes a run to completion and stores the result.
type RunProcessor interface {
	Process(ctx context.Context, run *pipeline.Run) error
}

// JobEnqueuer hands runs to the workers.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// ModuleChecker reports missing module configuration.
type ModuleChecker interface {
	CheckModules() error
}

// GenerateAccepted is returned for async requests.
type GenerateAccepted struct {
	RunID  string          `json:"run_id"`
	Status pipeline.Status `json:"status"`
	Poll   string          `json:"poll"`
}

// GenerateFailed is returned when a sync run fails.
type GenerateFailed struct {
	Error string        `json:"error"`
	Run   *pipeline.Run `json:"run"`
}

type GenerateHandler struct {
	processor RunProcessor
	storage   storage.Storage
	jobs      JobEnqueuer
	modules   ModuleChecker
	logger    *slog.Logger
}

// NewGenerateHandler creates the generate handler. jobs may be nil, in which
// case async requests are refused.
func NewGenerateHandler(processor RunProcessor, storage storage.Storage, jobs JobEnqueuer, modules ModuleChecker, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{
		processor: processor,
		storage:   storage,
		jobs:      jobs,
		modules:   modules,
		logger:    logger,
	}
}

// ServeHTTP handles POST /v1/generate
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	var req chat.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid generate request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	req.UserInput = strings.TrimSpace(req.UserInput)
	if err := h.modules.CheckModules(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	run := pipeline.NewRun(req.UserInput)
	log := h.logger.With("run_id", run.ID)

	if req.Async {
		h.enqueue(w, r, run, log)
		return
	}

	log.Info("Starting synchronous generation", "input_length", len(req.UserInput))
	if err := h.processor.Process(r.Context(), run); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, h.logger, status, GenerateFailed{Error: err.Error(), Run: run})
		return
	}
	writeJSON(w, h.logger, http.StatusOK, run)
}

func (h *GenerateHandler) enqueue(w http.ResponseWriter, r *http.Request, run *pipeline.Run, log *slog.Logger) {
	if h.jobs == nil {
		writeError(w, h.logger, http.StatusServiceUnavailable, "async generation is not available")
		return
	}
	if err := h.storage.SaveRun(r.Context(), run); err != nil {
		log.Error("Failed to save queued run", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save run")
		return
	}
	job := &queue.Job{RunID: run.ID, UserInput: run.UserInput}
	if err := h.jobs.Enqueue(r.Context(), job); err != nil {
		log.Error("Failed to enqueue run", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to enqueue run")
		return
	}

	log.Info("Run queued")
	writeJSON(w, h.logger, http.StatusAccepted, GenerateAccepted{
		RunID:  run.ID.String(),
		Status: run.Status,
		Poll:   "/v1/runs/" + run.ID.String(),
	})
}
