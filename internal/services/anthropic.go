package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/stage-forge/pkg/chat"
)

const (
	anthropicProvider       = "anthropic"
	DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"

	DefaultAnthropicMaxTokens = 2048

	// Anthropic has no JSON response mode; the instruction goes into the system prompt.
	anthropicJSONInstruction = "Respond with a single JSON object and nothing else."
)

// AnthropicService implements LLMService for Anthropic Claude
type AnthropicService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type AnthropicChatRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []chat.ChatMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type AnthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type AnthropicChatResponse struct {
	ID           string                  `json:"id"`
	Type         string                  `json:"type"`
	Role         string                  `json:"role"`
	Content      []AnthropicContentBlock `json:"content"`
	Model        string                  `json:"model"`
	StopReason   string                  `json:"stop_reason"`
	StopSequence *string                 `json:"stop_sequence"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicService(apiKey string, modelName string, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   DefaultAnthropicBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

// WithBaseURL points the service at another endpoint, e.g. a test server.
func (a *AnthropicService) WithBaseURL(baseURL string) *AnthropicService {
	a.baseURL = strings.TrimRight(baseURL, "/")
	return a
}

func (a *AnthropicService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

func (a *AnthropicService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	return a.apiKey != "", nil
}

// splitChatMessages extracts and combines all system messages into a single system prompt
// and returns the remaining non-system messages
func (a *AnthropicService) splitChatMessages(messages []chat.ChatMessage) (string, []chat.ChatMessage) {
	var systemParts []string
	var nonSystemMessages []chat.ChatMessage

	for _, msg := range messages {
		if msg.Role == chat.ChatRoleSystem {
			systemParts = append(systemParts, msg.Content)
		} else {
			nonSystemMessages = append(nonSystemMessages, msg)
		}
	}

	systemPrompt := strings.Join(systemParts, "\n\n")
	return systemPrompt, nonSystemMessages
}

func (a *AnthropicService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	messages := chat.Conversation(opts.SystemPrompt, prompt)
	if opts.JSONMode {
		messages = append(messages, chat.ChatMessage{Role: chat.ChatRoleSystem, Content: anthropicJSONInstruction})
	}
	systemPrompt, conversationMessages := a.splitChatMessages(messages)

	model := opts.Model
	if model == "" {
		model = a.modelName
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultAnthropicMaxTokens
	}
	temperature := opts.Temperature

	anthropicReq := AnthropicChatRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages:    conversationMessages,
		System:      systemPrompt,
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Set required Anthropic headers
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: anthropicProvider, Message: fmt.Sprintf("failed to make request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Provider: anthropicProvider, StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read response body: %v", err)}
	}

	var anthropicResp AnthropicChatResponse
	parseErr := json.Unmarshal(body, &anthropicResp)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if parseErr == nil && anthropicResp.Error != nil {
			msg = anthropicResp.Error.Message
		}
		a.logger.Debug("Anthropic request failed", "status", resp.StatusCode, "model", model)
		return "", &ProviderError{Provider: anthropicProvider, StatusCode: resp.StatusCode, Message: msg}
	}
	if parseErr != nil {
		return "", &ProviderError{Provider: anthropicProvider, StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to parse response: %v", parseErr)}
	}
	if anthropicResp.Error != nil {
		return "", &ProviderError{Provider: anthropicProvider, StatusCode: resp.StatusCode, Message: anthropicResp.Error.Message}
	}

	// Extract text content from the response
	var responseText string
	for _, content := range anthropicResp.Content {
		if content.Type == "text" {
			responseText += content.Text
		}
	}

	if responseText == "" {
		return "", &ProviderError{Provider: anthropicProvider, StatusCode: resp.StatusCode, Message: "no text content in response"}
	}

	return responseText, nil
}
