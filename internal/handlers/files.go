package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/stage-forge/internal/storage"
)

type FilesResponse struct {
	Files []storage.ScriptFile `json:"files"`
}

type FileHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

func NewFileHandler(storage storage.Storage, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		storage: storage,
		logger:  logger,
	}
}

// List handles GET /v1/files
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}

	files, err := h.storage.ListScripts(r.Context())
	if err != nil {
		h.logger.Error("Failed to list scripts", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list files")
		return
	}
	if files == nil {
		files = []storage.ScriptFile{}
	}
	writeJSON(w, h.logger, http.StatusOK, FilesResponse{Files: files})
}

// Download handles GET /v1/download/{filename}
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, h.logger, http.MethodGet)
		return
	}

	name := r.PathValue("filename")
	rc, err := h.storage.OpenScript(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrScriptNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "File not found")
			return
		}
		h.logger.Error("Failed to open script", "error", err, "filename", name)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to open file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "text/x-lua; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("Failed to send script", "error", err, "filename", name)
	}
}
