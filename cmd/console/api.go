package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/jwebster45206/stage-forge/internal/pipeline"
	"github.com/jwebster45206/stage-forge/pkg/chat"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// apiError turns a non-2xx reply into an error, preferring the API's message.
func apiError(action string, status int, body []byte) error {
	var errorResp ErrorResponse
	if err := json.Unmarshal(body, &errorResp); err != nil || errorResp.Error == "" {
		return fmt.Errorf("API returned status %d: %s", status, string(body))
	}
	return fmt.Errorf("%s: %s", action, errorResp.Error)
}

func testConnection(client *http.Client, baseURL string) bool {
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()
	return resp.StatusCode == http.StatusOK
}

// getJSON fetches path and decodes a 200 reply into v.
func getJSON(client *http.Client, baseURL, path, action string, v any) error {
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return apiError(action, resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// GenerateAccepted is the reply to an async generate request.
type GenerateAccepted struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// startGeneration queues a run and returns its id.
func startGeneration(client *http.Client, baseURL, userInput string) (string, error) {
	jsonData, err := json.Marshal(chat.GenerateRequest{UserInput: userInput, Async: true})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(baseURL+"/v1/generate", "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", apiError("generation request failed", resp.StatusCode, body)
	}

	var accepted GenerateAccepted
	if err := json.Unmarshal(body, &accepted); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return accepted.RunID, nil
}

func getRun(client *http.Client, baseURL, runID string) (*pipeline.Run, error) {
	var run pipeline.Run
	if err := getJSON(client, baseURL, "/v1/runs/"+runID, "failed to get run", &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ScriptFile is one entry from GET /v1/files.
type ScriptFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

func listFiles(client *http.Client, baseURL string) ([]ScriptFile, error) {
	var resp struct {
		Files []ScriptFile `json:"files"`
	}
	if err := getJSON(client, baseURL, "/v1/files", "failed to list files", &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// ModuleInfo is the subset of a module's configuration the console shows.
type ModuleInfo struct {
	Key         string  `json:"-"`
	Name        string  `json:"name"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	JSONMode    bool    `json:"json_mode"`
}

// listModules returns modules sorted by key.
func listModules(client *http.Client, baseURL string) ([]ModuleInfo, error) {
	var byKey map[string]ModuleInfo
	if err := getJSON(client, baseURL, "/v1/modules", "failed to list modules", &byKey); err != nil {
		return nil, err
	}
	modules := make([]ModuleInfo, 0, len(byKey))
	for key, m := range byKey {
		m.Key = key
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i].Key < modules[j].Key })
	return modules, nil
}
