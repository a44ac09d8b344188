package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jwebster45206/stage-forge/internal/storage"
)

type RunHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewRunHandler(storage storage.Storage, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		storage: storage,
		logger:  logger,
	}
}

// ServeHTTP handles GET /v1/runs/{id}
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}

	idStr := r.PathValue("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.logger.Warn("Invalid run ID", "id", idStr, "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid run ID format")
		return
	}

	run, err := h.storage.LoadRun(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load run", "error", err, "run_id", id)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load run")
		return
	}
	if run == nil {
		writeError(w, h.logger, http.StatusNotFound, "Run not found")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, run)
}
