package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/stage-forge/internal/config"
)

// ModuleView is a module as shown to clients, with defaults filled in.
type ModuleView struct {
	Name            string  `json:"name"`
	Model           string  `json:"model"`
	PromptTemplate  string  `json:"prompt_template"`
	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	JSONMode        bool    `json:"json_mode"`
	ReasoningEffort string  `json:"reasoning_effort,omitempty"`
}

type ModuleUpdateResponse struct {
	Success bool       `json:"success"`
	Module  ModuleView `json:"module"`
}

func newModuleView(key string, m config.ModuleConfig) ModuleView {
	return ModuleView{
		Name:            config.DisplayName(key, m),
		Model:           m.Model,
		PromptTemplate:  m.PromptTemplate,
		Temperature:     m.EffectiveTemperature(),
		MaxTokens:       m.EffectiveMaxTokens(),
		JSONMode:        m.JSONMode,
		ReasoningEffort: m.ReasoningEffort,
	}
}

type ModuleHandler struct {
	modules *config.ModuleStore
	logger  *slog.Logger
}

func NewModuleHandler(modules *config.ModuleStore, logger *slog.Logger) *ModuleHandler {
	return &ModuleHandler{
		modules: modules,
		logger:  logger,
	}
}

// ServeHTTP handles module configuration
// Routes:
// GET /v1/modules         - List every module
// POST /v1/modules/{name} - Merge fields into one module and save
func (h *ModuleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	switch {
	case r.Method == http.MethodGet && name == "":
		h.handleList(w)
	case r.Method == http.MethodPost && name != "":
		h.handleUpdate(w, r, name)
	case name == "":
		methodNotAllowed(w, r, h.logger, http.MethodGet)
	default:
		methodNotAllowed(w, r, h.logger, http.MethodPost)
	}
}

func (h *ModuleHandler) handleList(w http.ResponseWriter) {
	all := h.modules.All()
	views := make(map[string]ModuleView, len(all))
	for key, m := range all {
		views[key] = newModuleView(key, m)
	}
	writeJSON(w, h.logger, http.StatusOK, views)
}

func (h *ModuleHandler) handleUpdate(w http.ResponseWriter, r *http.Request, name string) {
	var patch config.ModulePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.modules.Update(name, patch)
	if err != nil {
		h.logger.Error("Failed to update module", "error", err, "module", name)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to save module configuration")
		return
	}

	h.logger.Info("Module updated", "module", name)
	writeJSON(w, h.logger, http.StatusOK, ModuleUpdateResponse{Success: true, Module: newModuleView(name, updated)})
}
