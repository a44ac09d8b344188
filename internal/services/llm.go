package services

import (
	"context"
	"fmt"
)

// LLMService defines the interface for interacting with the LLM API
type LLMService interface {
	// InitModel prepares the model on startup
	InitModel(ctx context.Context, modelName string) error

	// IsModelReady checks if the specified model is ready for use
	IsModelReady(ctx context.Context, modelName string) (bool, error)

	// Generate sends a single-turn prompt and returns the raw text reply
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions carries per-module request settings.
type GenerateOptions struct {
	Model           string // empty uses the service default
	SystemPrompt    string
	Temperature     float64
	MaxTokens       int
	JSONMode        bool
	ReasoningEffort string // "low", "medium", "high"; responses API only
}

// ProviderError is returned when a provider rejects or fails a request.
type ProviderError struct {
	Provider   string
	StatusCode int // 0 when the request never got a response
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}
