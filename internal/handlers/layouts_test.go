package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/jwebster45206/stage-forge/pkg/compiler"
	"github.com/jwebster45206/stage-forge/pkg/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	oneDoorConstraints = `{"grid":{"width":4,"height":3},"counts":{"enemy":0,"npc":0,"chest":0,"door":1},"difficulty":"easy"}`
	reachableLayout    = `{"grid_meta":{"width":4,"height":3},"grid_ascii":["#S##","#.D#","####"],"entities":{"player_start":{"x":1,"y":0},"doors":[{"x":2,"y":1,"type":"iron"}],"chests":[],"enemies":[],"npcs":[]}}`
	sealedDoorLayout   = `{"grid_meta":{"width":4,"height":3},"grid_ascii":["#S##","##D#","####"],"entities":{"player_start":{"x":1,"y":0},"doors":[{"x":2,"y":1,"type":"iron"}],"chests":[],"enemies":[],"npcs":[]}}`
)

func validateBody(constraints, l string) string {
	return `{"constraints":` + constraints + `,"layout":` + l + `}`
}

func TestLayoutHandler_Validate(t *testing.T) {
	h := NewLayoutHandler(testLogger())

	tests := []struct {
		name      string
		body      string
		wantValid bool
		wantCode  string
	}{
		{"valid", validateBody(oneDoorConstraints, reachableLayout), true, ""},
		{"unreachable door", validateBody(oneDoorConstraints, sealedDoorLayout), false, layout.CodeUnreachableDoor},
		{"layout is not an object", validateBody(oneDoorConstraints, `"grid"`), false, layout.CodeInvalidFormat},
		{"layout missing", `{"constraints":` + oneDoorConstraints + `}`, false, layout.CodeInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(http.HandlerFunc(h.Validate), http.MethodPost, "/v1/layouts/validate", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var res layout.ValidationResult
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.Empty(t, res.Errors)
				return
			}
			require.Len(t, res.Errors, 1)
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
		})
	}
}

func TestLayoutHandler_ValidateRejectsBadInput(t *testing.T) {
	h := NewLayoutHandler(testLogger())

	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{"bad body", http.MethodPost, "{", http.StatusBadRequest},
		{"no constraints", http.MethodPost, `{"layout":` + reachableLayout + `}`, http.StatusBadRequest},
		{"negative count", http.MethodPost, validateBody(`{"grid":{"width":4,"height":3},"counts":{"enemy":-1,"npc":0,"chest":0,"door":0}}`, reachableLayout), http.StatusBadRequest},
		{"zero grid", http.MethodPost, validateBody(`{"grid":{"width":0,"height":3},"counts":{"enemy":0,"npc":0,"chest":0,"door":0}}`, reachableLayout), http.StatusBadRequest},
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(http.HandlerFunc(h.Validate), tt.method, "/v1/layouts/validate", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestLayoutHandler_Compile(t *testing.T) {
	h := NewLayoutHandler(testLogger())

	body := `{"layout":` + reachableLayout + `,"preamble":"SetEnvironment(\"Crypt\")"}`
	rec := do(http.HandlerFunc(h.Compile), http.MethodPost, "/v1/layouts/compile", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Commands []struct {
			Kind compiler.Kind  `json:"kind"`
			Lua  string         `json:"lua"`
			Args map[string]any `json:"args"`
		} `json:"commands"`
		Script      string `json:"script"`
		SyntaxError string `json:"syntax_error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// preamble, block, 9 walls, 1 door, 1 player start comment
	require.Len(t, resp.Commands, 13)
	assert.Equal(t, compiler.KindRaw, resp.Commands[0].Kind)
	assert.Equal(t, `SetEnvironment("Crypt")`, resp.Commands[0].Lua)
	assert.Equal(t, compiler.KindAllocateBlock, resp.Commands[1].Kind)
	assert.Equal(t, "local stage = AllocBlock(4, 3, 0, 0)", resp.Commands[1].Lua)
	assert.EqualValues(t, 4, resp.Commands[1].Args["width"])
	assert.Equal(t, compiler.KindComment, resp.Commands[3].Kind)
	assert.Equal(t, "-- Player start at (1,0)", resp.Commands[3].Lua)

	assert.True(t, strings.HasPrefix(resp.Script, "SetEnvironment(\"Crypt\")\nlocal stage = AllocBlock(4, 3, 0, 0)\n"))
	assert.Empty(t, resp.SyntaxError)
}

func TestLayoutHandler_CompileReportsSyntaxError(t *testing.T) {
	h := NewLayoutHandler(testLogger())

	body := `{"layout":` + reachableLayout + `,"preamble":"SetEnvironment("}`
	rec := do(http.HandlerFunc(h.Compile), http.MethodPost, "/v1/layouts/compile", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SyntaxError string `json:"syntax_error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.SyntaxError, "Stage.lua")
}

func TestLayoutHandler_CompileRejectsBadLayout(t *testing.T) {
	h := NewLayoutHandler(testLogger())

	rec := do(http.HandlerFunc(h.Compile), http.MethodPost, "/v1/layouts/compile", `{"layout":[1,2]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "well-formed")

	rec = do(http.HandlerFunc(h.Compile), http.MethodPost, "/v1/layouts/compile", "nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
