package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/jwebster45206/stage-forge/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func TestModuleHandler_List(t *testing.T) {
	store := config.NewModuleStore("", map[string]config.ModuleConfig{
		"stage_design": {PromptTemplate: "design {blueprint}", Model: "gpt-5.1-codex", ReasoningEffort: "medium"},
		"screenwriter": {Name: "Writer", PromptTemplate: "write {user_input}", Temperature: float(0.9), MaxTokens: 4000, JSONMode: true},
	})
	mux := testMux(t, nil, nil, NewModuleHandler(store, testLogger()))

	rec := do(mux, http.MethodGet, "/v1/modules", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]ModuleView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)

	assert.Equal(t, ModuleView{
		Name:            "Stage Design",
		Model:           "gpt-5.1-codex",
		PromptTemplate:  "design {blueprint}",
		Temperature:     config.DefaultTemperature,
		MaxTokens:       config.DefaultMaxTokens,
		ReasoningEffort: "medium",
	}, got["stage_design"])
	assert.Equal(t, "Writer", got["screenwriter"].Name)
	assert.Equal(t, 0.9, got["screenwriter"].Temperature)
	assert.Equal(t, 4000, got["screenwriter"].MaxTokens)
	assert.True(t, got["screenwriter"].JSONMode)
}

func TestModuleHandler_Update(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	store := config.NewModuleStore(path, map[string]config.ModuleConfig{
		"casting_design": {PromptTemplate: "cast {blueprint}", Model: "gpt-4o"},
	})
	mux := testMux(t, nil, nil, NewModuleHandler(store, testLogger()))

	rec := do(mux, http.MethodPost, "/v1/modules/casting_design", `{"temperature":0.2,"json_mode":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModuleUpdateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "cast {blueprint}", resp.Module.PromptTemplate, "unpatched fields are kept")
	assert.Equal(t, "gpt-4o", resp.Module.Model)
	assert.Equal(t, 0.2, resp.Module.Temperature)
	assert.True(t, resp.Module.JSONMode)

	reloaded, err := config.LoadModules(path)
	require.NoError(t, err)
	m, ok := reloaded.Get("casting_design")
	require.True(t, ok)
	assert.Equal(t, 0.2, m.EffectiveTemperature())

	// unknown modules are created
	rec = do(mux, http.MethodPost, "/v1/modules/stage_programmer", `{"prompt_template":"env {stage_design}"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok = store.Get("stage_programmer")
	assert.True(t, ok)
}

func TestModuleHandler_Errors(t *testing.T) {
	store := config.NewModuleStore("", nil)
	mux := testMux(t, nil, nil, NewModuleHandler(store, testLogger()))

	rec := do(mux, http.MethodPost, "/v1/modules/screenwriter", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(mux, http.MethodPut, "/v1/modules", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = do(mux, http.MethodGet, "/v1/modules/screenwriter", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
