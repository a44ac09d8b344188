package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/internal/queue"
	"github.com/jwebster45206/stage-forge/internal/services"
	"github.com/jwebster45206/stage-forge/internal/storage"
	"github.com/jwebster45206/stage-forge/internal/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProcessor struct {
	calls int
	fn    func(run *pipeline.Run) error
}

func (f *fakeProcessor) Process(ctx context.Context, run *pipeline.Run) error {
	f.calls++
	if f.fn == nil {
		run.Status = pipeline.StatusCompleted
		return nil
	}
	return f.fn(run)
}

type fakeJobs struct {
	jobs []*queue.Job
	err  error
}

func (f *fakeJobs) Enqueue(ctx context.Context, job *queue.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeModules struct {
	err error
}

func (f fakeModules) CheckModules() error { return f.err }

// testMux wires every handler, with nil-safe defaults for the ones a test
// does not care about.
func testMux(t *testing.T, store storage.Storage, gen *GenerateHandler, modules *ModuleHandler) http.Handler {
	t.Helper()
	log := testLogger()
	if gen == nil {
		gen = NewGenerateHandler(&fakeProcessor{}, store, nil, fakeModules{}, log)
	}
	if modules == nil {
		modules = NewModuleHandler(nil, log)
	}
	return NewMux(Handlers{
		Health:   NewHealthHandler(store, services.NewMockLLMAPI(), "m", log),
		Generate: gen,
		Runs:     NewRunHandler(store, log),
		Layouts:  NewLayoutHandler(log),
		Modules:  modules,
		Files:    NewFileHandler(store, log),
	})
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestGenerateHandler_Sync(t *testing.T) {
	proc := &fakeProcessor{fn: func(run *pipeline.Run) error {
		run.Status = pipeline.StatusCompleted
		run.MainLua = "-- main\n"
		return nil
	}}
	h := NewGenerateHandler(proc, nil, nil, fakeModules{}, testLogger())

	rec := do(h, http.MethodPost, "/v1/generate", `{"user_input":"  a crypt  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var run pipeline.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "a crypt", run.UserInput)
	assert.Equal(t, pipeline.StatusCompleted, run.Status)
	assert.Equal(t, "-- main\n", run.MainLua)
	assert.Equal(t, 1, proc.calls)
}

func TestGenerateHandler_SyncFailure(t *testing.T) {
	proc := &fakeProcessor{fn: func(run *pipeline.Run) error {
		run.Status = pipeline.StatusFailed
		run.Error = "screenwriter: provider down"
		return errors.New("screenwriter: provider down")
	}}
	h := NewGenerateHandler(proc, nil, nil, fakeModules{}, testLogger())

	rec := do(h, http.MethodPost, "/v1/generate", `{"user_input":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp GenerateFailed
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "screenwriter: provider down", resp.Error)
	require.NotNil(t, resp.Run)
	assert.Equal(t, pipeline.StatusFailed, resp.Run.Status)
}

func TestGenerateHandler_SyncTimeout(t *testing.T) {
	proc := &fakeProcessor{fn: func(run *pipeline.Run) error {
		return context.DeadlineExceeded
	}}
	h := NewGenerateHandler(proc, nil, nil, fakeModules{}, testLogger())

	rec := do(h, http.MethodPost, "/v1/generate", `{"user_input":"x"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestGenerateHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		body    string
		modules ModuleChecker
		status  int
		errText string
	}{
		{"wrong method", http.MethodGet, "", fakeModules{}, http.StatusMethodNotAllowed, "POST"},
		{"bad json", http.MethodPost, "{", fakeModules{}, http.StatusBadRequest, "Invalid request body"},
		{"empty input", http.MethodPost, `{"user_input":"   "}`, fakeModules{}, http.StatusBadRequest, "user_input is required"},
		{
			"missing modules", http.MethodPost, `{"user_input":"x"}`,
			fakeModules{err: errors.New("missing module configuration: stage_design")},
			http.StatusBadRequest, "stage_design",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			h := NewGenerateHandler(proc, nil, nil, tt.modules, testLogger())

			rec := do(h, tt.method, "/v1/generate", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, decodeError(t, rec), tt.errText)
			assert.Zero(t, proc.calls)
		})
	}
}

func TestGenerateHandler_Async(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorage(ctrl)
	jobs := &fakeJobs{}
	proc := &fakeProcessor{}

	var saved *pipeline.Run
	store.EXPECT().SaveRun(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, run *pipeline.Run) error {
		saved = run
		return nil
	})

	h := NewGenerateHandler(proc, store, jobs, fakeModules{}, testLogger())
	rec := do(h, http.MethodPost, "/v1/generate", `{"user_input":"a crypt","async":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp GenerateAccepted
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, saved)
	assert.Equal(t, saved.ID.String(), resp.RunID)
	assert.Equal(t, pipeline.StatusQueued, resp.Status)
	assert.Equal(t, "/v1/runs/"+resp.RunID, resp.Poll)
	assert.Equal(t, pipeline.StatusQueued, saved.Status)

	require.Len(t, jobs.jobs, 1)
	assert.Equal(t, saved.ID, jobs.jobs[0].RunID)
	assert.Equal(t, "a crypt", jobs.jobs[0].UserInput)
	assert.Zero(t, proc.calls, "async requests do not run inline")
}

func TestGenerateHandler_AsyncFailures(t *testing.T) {
	t.Run("no queue", func(t *testing.T) {
		h := NewGenerateHandler(&fakeProcessor{}, nil, nil, fakeModules{}, testLogger())
		rec := do(h, http.MethodPost, "/v1/generate", `{"user_input":"x","async":true}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("save fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStorage(ctrl)
		store.EXPECT().SaveRun(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
		jobs := &fakeJobs{}

		h := NewGenerateHandler(&fakeProcessor{}, store, jobs, fakeModules{}, testLogger())
		rec := do(h, http.MethodPost, "/v1/generate", `{"user_input":"x","async":true}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Empty(t, jobs.jobs)
	})

	t.Run("enqueue fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStorage(ctrl)
		store.EXPECT().SaveRun(gomock.Any(), gomock.Any()).Return(nil)

		h := NewGenerateHandler(&fakeProcessor{}, store, &fakeJobs{err: errors.New("full")}, fakeModules{}, testLogger())
		rec := do(h, http.MethodPost, "/v1/generate", `{"user_input":"x","async":true}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Failed to enqueue run", decodeError(t, rec))
	})
}

func TestRunHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorage(ctrl)
	mux := testMux(t, store, nil, nil)

	run := pipeline.NewRun("stored")
	store.EXPECT().LoadRun(gomock.Any(), run.ID).Return(run, nil)

	rec := do(mux, http.MethodGet, "/v1/runs/"+run.ID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got pipeline.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "stored", got.UserInput)
}

func TestRunHandler_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorage(ctrl)
	mux := testMux(t, store, nil, nil)

	rec := do(mux, http.MethodGet, "/v1/runs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	missing := pipeline.NewRun("gone").ID
	store.EXPECT().LoadRun(gomock.Any(), missing).Return(nil, nil)
	rec = do(mux, http.MethodGet, "/v1/runs/"+missing.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Run not found", decodeError(t, rec))

	broken := pipeline.NewRun("broken").ID
	store.EXPECT().LoadRun(gomock.Any(), broken).Return(nil, errors.New("bad json"))
	rec = do(mux, http.MethodGet, "/v1/runs/"+broken.String(), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(mux, http.MethodDelete, "/v1/runs/"+broken.String(), "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFileHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorage(ctrl)
	mux := testMux(t, store, nil, nil)

	store.EXPECT().ListScripts(gomock.Any()).Return([]storage.ScriptFile{
		{Name: "Stage.lua", Size: 42, Path: storage.DownloadPath("Stage.lua")},
	}, nil)

	rec := do(mux, http.MethodGet, "/v1/files", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[{"name":"Stage.lua","size":42,"path":"/v1/download/Stage.lua"}]}`, rec.Body.String())

	store.EXPECT().ListScripts(gomock.Any()).Return(nil, nil)
	rec = do(mux, http.MethodGet, "/v1/files", "")
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())

	store.EXPECT().ListScripts(gomock.Any()).Return(nil, errors.New("disk gone"))
	rec = do(mux, http.MethodGet, "/v1/files", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestFileHandler_Download(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStorage(ctrl)
	mux := testMux(t, store, nil, nil)

	store.EXPECT().OpenScript(gomock.Any(), "main.lua").Return(io.NopCloser(strings.NewReader("print(1)\n")), nil)
	rec := do(mux, http.MethodGet, "/v1/download/main.lua", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "print(1)\n", rec.Body.String())
	assert.Equal(t, `attachment; filename="main.lua"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/x-lua")

	store.EXPECT().OpenScript(gomock.Any(), "nope.lua").Return(nil, storage.ErrScriptNotFound)
	rec = do(mux, http.MethodGet, "/v1/download/nope.lua", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", decodeError(t, rec))
}
