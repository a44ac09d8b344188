package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/pkg/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI(t *testing.T, run *pipeline.Run) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["user_input"] == "" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "user_input is required"})
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(GenerateAccepted{RunID: run.ID.String(), Status: "queued"})
	})
	mux.HandleFunc("/v1/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != run.ID.String() {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "Run not found"})
			return
		}
		_ = json.NewEncoder(w).Encode(run)
	})
	mux.HandleFunc("/v1/files", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"files":[{"name":"Stage.lua","size":12,"path":"/v1/download/Stage.lua"}]}`))
	})
	mux.HandleFunc("/v1/modules", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"stage_design":{"name":"Stage Design","temperature":0.2,"json_mode":true},"casting_design":{"name":"Casting Design","model":"gpt-4o"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAPIClient(t *testing.T) {
	run := pipeline.NewRun("a crypt")
	run.Status = pipeline.StatusCompleted
	run.StageLua = "local stage = AllocBlock(3, 3, 0, 0)\n"
	srv := newTestAPI(t, run)
	client := srv.Client()

	assert.True(t, testConnection(client, srv.URL))

	id, err := startGeneration(client, srv.URL, "a crypt")
	require.NoError(t, err)
	assert.Equal(t, run.ID.String(), id)

	_, err = startGeneration(client, srv.URL, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user_input is required")

	got, err := getRun(client, srv.URL, id)
	require.NoError(t, err)
	assert.True(t, got.Done())
	assert.Equal(t, run.StageLua, got.StageLua)

	_, err = getRun(client, srv.URL, uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Run not found")

	files, err := listFiles(client, srv.URL)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Stage.lua", files[0].Name)

	modules, err := listModules(client, srv.URL)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "casting_design", modules[0].Key)
	assert.Equal(t, "stage_design", modules[1].Key)
	assert.True(t, modules[1].JSONMode)
}

func TestTestConnection_Down(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	assert.False(t, testConnection(http.DefaultClient, url))
}

func TestScriptFor(t *testing.T) {
	_, _, ok := scriptFor(nil, "stage")
	assert.False(t, ok)

	run := &pipeline.Run{StageLua: "s", MainLua: "m"}
	file, script, ok := scriptFor(run, "")
	require.True(t, ok)
	assert.Equal(t, pipeline.StageScript, file)
	assert.Equal(t, "s", script)

	file, _, ok = scriptFor(run, "main.lua")
	require.True(t, ok)
	assert.Equal(t, pipeline.MainScript, file)

	_, _, ok = scriptFor(run, "cast")
	assert.False(t, ok, "empty scripts are not shown")

	_, _, ok = scriptFor(run, "notes")
	assert.False(t, ok)
}

func TestFormatRun(t *testing.T) {
	run := &pipeline.Run{
		Status:         pipeline.StatusCompleted,
		LayoutAttempts: 2,
		Layout: &layout.Layout{
			GridMeta:  layout.GridMeta{Width: 4, Height: 3},
			GridASCII: []string{"##D#", "#S.#", "####"},
		},
		Warnings:   []string{"Stage.lua:3: unexpected symbol"},
		SavedFiles: map[string]string{pipeline.StageScript: "output/Stage.lua"},
	}
	out := formatRun(run, 60)
	assert.Contains(t, out, "Stage ready")
	assert.Contains(t, out, "Layout attempts: 2")
	assert.Contains(t, out, "unexpected symbol")
	assert.Contains(t, out, "output/Stage.lua")

	failed := formatRun(&pipeline.Run{Status: pipeline.StatusFailed, Error: "screenwriter: boom"}, 60)
	assert.Contains(t, failed, "screenwriter: boom")
}

func TestRenderGrid(t *testing.T) {
	assert.Empty(t, renderGrid(nil))
	out := renderGrid(&layout.Layout{GridASCII: []string{"#S", ".D"}})
	assert.Equal(t, 2, strings.Count(out, "\n"))
	assert.Contains(t, out, "S")
	assert.Contains(t, out, "D")
}

func TestFormatModulesAndFiles(t *testing.T) {
	out := formatModules([]ModuleInfo{{Name: "Screenwriter", Temperature: 0.7, JSONMode: true}})
	assert.Contains(t, out, "Screenwriter: default model, temp 0.70, json")
	assert.Contains(t, formatModules(nil), "No modules configured")

	assert.Contains(t, formatFiles(nil), "No scripts generated yet")
	assert.Contains(t, formatFiles([]ScriptFile{{Name: "main.lua", Size: 9}}), "main.lua (9 bytes)")
}

func TestWriteMetadata(t *testing.T) {
	assert.Contains(t, writeMetadata(nil), "No run yet")

	run := pipeline.NewRun("x")
	run.Constraints = &layout.Constraints{Grid: layout.GridSize{Width: 12, Height: 8}, Counts: layout.Counts{Door: 2}}
	out := writeMetadata(run)
	assert.Contains(t, out, "12x8")
	assert.Contains(t, out, "door: 2")
	assert.Contains(t, out, run.ID.String()[:8])
}
