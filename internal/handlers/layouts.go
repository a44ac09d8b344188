package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/stage-forge/pkg/compiler"
	"github.com/jwebster45206/stage-forge/pkg/layout"
)

type ValidateRequest struct {
	Constraints json.RawMessage `json:"constraints"`
	Layout      json.RawMessage `json:"layout"`
}

type CompileRequest struct {
	Layout   json.RawMessage `json:"layout"`
	Preamble string          `json:"preamble,omitempty"`
}

// CompiledCommand is one engine command with its Lua rendering.
type CompiledCommand struct {
	Kind compiler.Kind    `json:"kind"`
	Lua  string           `json:"lua"`
	Args compiler.Command `json:"args"`
}

type CompileResponse struct {
	Commands []CompiledCommand `json:"commands"`
	Script   string            `json:"script"`
	// SyntaxError is set when the rendered script (usually its preamble) does not parse.
	SyntaxError string `json:"syntax_error,omitempty"`
}

// LayoutHandler exposes the validator and compiler without any LLM involvement.
type LayoutHandler struct {
	logger *slog.Logger
}

func NewLayoutHandler(logger *slog.Logger) *LayoutHandler {
	return &LayoutHandler{logger: logger}
}

// Validate handles POST /v1/layouts/validate. An invalid layout is still a
// 200; only unusable constraints or an unreadable body are 400s.
func (h *LayoutHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	constraints, err := layout.ParseConstraints(req.Constraints)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	candidate, err := layout.DecodeLayout(req.Layout)
	if err != nil {
		writeJSON(w, h.logger, http.StatusOK, layout.InvalidFormat(err))
		return
	}

	result, err := layout.Validate(constraints, candidate)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, layout.ErrInvalidConstraints) {
			status = http.StatusBadRequest
		}
		writeError(w, h.logger, status, err.Error())
		return
	}
	h.logger.Debug("Layout validated", "valid", result.Valid)
	writeJSON(w, h.logger, http.StatusOK, result)
}

// Compile handles POST /v1/layouts/compile. The layout is compiled as given;
// callers validate first.
func (h *LayoutHandler) Compile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, h.logger, http.MethodPost)
		return
	}

	var req CompileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	l, err := layout.DecodeLayout(req.Layout)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	cmds := compiler.Compile(l, req.Preamble)
	resp := CompileResponse{
		Commands: make([]CompiledCommand, 0, len(cmds)),
		Script:   compiler.Render(cmds),
	}
	for _, c := range cmds {
		resp.Commands = append(resp.Commands, CompiledCommand{Kind: c.Kind(), Lua: c.Lua(), Args: c})
	}
	if err := compiler.CheckLua("Stage.lua", resp.Script); err != nil {
		resp.SyntaxError = err.Error()
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
