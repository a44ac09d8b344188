package services

import (
	"context"
	"sync"
)

// MockLLMAPI is a mock implementation of LLMService for testing
type MockLLMAPI struct {
	InitModelFunc    func(ctx context.Context, modelName string) error
	GenerateFunc     func(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	IsModelReadyFunc func(ctx context.Context, modelName string) (bool, error)

	// Track calls for testing
	InitModelCalls    []string
	GenerateCalls     []GenerateCall
	IsModelReadyCalls []string

	mu sync.Mutex // protects all fields above
}

type GenerateCall struct {
	Prompt  string
	Options GenerateOptions
}

// NewMockLLMAPI creates a new mock LLM service
func NewMockLLMAPI() *MockLLMAPI {
	return &MockLLMAPI{
		InitModelCalls:    make([]string, 0),
		GenerateCalls:     make([]GenerateCall, 0),
		IsModelReadyCalls: make([]string, 0),
	}
}

// InitModel mocks model initialization
func (m *MockLLMAPI) InitModel(ctx context.Context, modelName string) error {
	m.mu.Lock()
	m.InitModelCalls = append(m.InitModelCalls, modelName)
	fn := m.InitModelFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelName)
	}

	// Default behavior - success
	return nil
}

// Generate mocks text generation. The func is called outside the lock so
// it may inspect the mock itself.
func (m *MockLLMAPI) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	m.mu.Lock()
	m.GenerateCalls = append(m.GenerateCalls, GenerateCall{Prompt: prompt, Options: opts})
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, opts)
	}

	return "Mock response", nil
}

// IsModelReady mocks model readiness check
func (m *MockLLMAPI) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	m.mu.Lock()
	m.IsModelReadyCalls = append(m.IsModelReadyCalls, modelName)
	fn := m.IsModelReadyFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, modelName)
	}

	// Default behavior - model is ready
	return true, nil
}

// Reset clears all call tracking
func (m *MockLLMAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelCalls = make([]string, 0)
	m.GenerateCalls = make([]GenerateCall, 0)
	m.IsModelReadyCalls = make([]string, 0)
}

// SetInitModelError sets up the mock to return an error on InitModel
func (m *MockLLMAPI) SetInitModelError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitModelFunc = func(ctx context.Context, modelName string) error {
		return err
	}
}

// SetGenerateError sets up the mock to return an error on Generate
func (m *MockLLMAPI) SetGenerateError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateFunc = func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
		return "", err
	}
}

// SetResponses makes Generate return the given replies in order, repeating
// the last one once they run out.
func (m *MockLLMAPI) SetResponses(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var next int
	var replyMu sync.Mutex
	m.GenerateFunc = func(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
		replyMu.Lock()
		defer replyMu.Unlock()
		if len(replies) == 0 {
			return "", nil
		}
		i := min(next, len(replies)-1)
		next++
		return replies[i], nil
	}
}

// SetModelNotReady sets up the mock to return false for IsModelReady
func (m *MockLLMAPI) SetModelNotReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IsModelReadyFunc = func(ctx context.Context, modelName string) (bool, error) {
		return false, nil
	}
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLMAPI) GetCalls() ([]string, []GenerateCall, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	initCalls := make([]string, len(m.InitModelCalls))
	copy(initCalls, m.InitModelCalls)

	genCalls := make([]GenerateCall, len(m.GenerateCalls))
	copy(genCalls, m.GenerateCalls)

	readyCalls := make([]string, len(m.IsModelReadyCalls))
	copy(readyCalls, m.IsModelReadyCalls)

	return initCalls, genCalls, readyCalls
}
