package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"
)

const (
	openAIProvider       = "openai"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	defaultReasoningEffort = "high"
)

// Models that reject max_tokens on chat/completions.
var modelsWithoutMaxTokens = []string{"gpt-5.1", "gpt-5.2", "gpt-5.2-chat-latest", "gpt-5-mini"}

// Models that are only served by the responses API.
var responsesOnlyModels = []string{"gpt-5.1-codex", "gpt-5.2-pro"}

// OpenAIService implements LLMService for OpenAI and any OpenAI-compatible endpoint.
type OpenAIService struct {
	apiKey     string
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type OpenAIChatRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	Temperature    float64               `json:"temperature"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type OpenAIChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIReasoning struct {
	Effort string `json:"effort"`
}

// OpenAIResponsesRequest is the body for the responses API. It takes no
// temperature.
type OpenAIResponsesRequest struct {
	Model        string           `json:"model"`
	Input        string           `json:"input"`
	Instructions string           `json:"instructions,omitempty"`
	Reasoning    *openAIReasoning `json:"reasoning,omitempty"`
}

type OpenAIResponsesResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	OutputText string `json:"output_text,omitempty"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *openAIError `json:"error,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// NewOpenAIService creates an OpenAI service. An empty baseURL uses the public API.
func NewOpenAIService(apiKey, modelName, baseURL string, logger *slog.Logger) *OpenAIService {
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &OpenAIService{
		apiKey:    apiKey,
		modelName: modelName,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // long prompts on reasoning models are slow
		},
		logger: logger,
	}
}

// InitModel is a no-op; hosted models need no warm-up.
func (o *OpenAIService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// IsModelReady reports whether an API key is configured.
func (o *OpenAIService) IsModelReady(ctx context.Context, modelName string) (bool, error) {
	return o.apiKey != "", nil
}

func usesResponsesAPI(model string) bool {
	return slices.Contains(responsesOnlyModels, model) || strings.Contains(strings.ToLower(model), "codex")
}

func (o *OpenAIService) Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error) {
	model := opts.Model
	if model == "" {
		model = o.modelName
	}
	if usesResponsesAPI(model) {
		return o.generateResponses(ctx, model, prompt, opts)
	}
	return o.generateChat(ctx, model, prompt, opts)
}

func (o *OpenAIService) generateChat(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	messages := make([]openAIMessage, 0, 2)
	if opts.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: prompt})

	request := OpenAIChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
	}
	if !slices.Contains(modelsWithoutMaxTokens, model) {
		request.MaxTokens = opts.MaxTokens
	}
	if opts.JSONMode {
		request.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	body, err := o.post(ctx, "/chat/completions", request)
	var perr *ProviderError
	if errors.As(err, &perr) && maxTokensUnsupported(perr) {
		o.logger.Warn("Model rejected max_tokens, retrying without it", "model", model)
		request.MaxTokens = 0
		request.ResponseFormat = nil
		body, err = o.post(ctx, "/chat/completions", request)
	}
	if err != nil {
		return "", err
	}

	var resp OpenAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ProviderError{Provider: openAIProvider, StatusCode: http.StatusOK, Message: fmt.Sprintf("failed to unmarshal response: %v", err)}
	}
	if resp.Error != nil {
		return "", &ProviderError{Provider: openAIProvider, StatusCode: http.StatusOK, Message: resp.Error.Message}
	}
	if len(resp.Choices) == 0 {
		return "", &ProviderError{Provider: openAIProvider, StatusCode: http.StatusOK, Message: "no choices returned from API"}
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", &ProviderError{Provider: openAIProvider, StatusCode: http.StatusOK, Message: "model refused to respond: " + msg.Refusal}
	}
	return msg.Content, nil
}

func (o *OpenAIService) generateResponses(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error) {
	effort := opts.ReasoningEffort
	if effort == "" {
		effort = defaultReasoningEffort
	}
	request := OpenAIResponsesRequest{
		Model:        model,
		Input:        prompt,
		Instructions: opts.SystemPrompt,
		Reasoning:    &openAIReasoning{Effort: effort},
	}

	body, err := o.post(ctx, "/responses", request)
	if err != nil {
		return "", err
	}

	var resp OpenAIResponsesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ProviderError{Provider: openAIProvider, StatusCode: http.StatusOK, Message: fmt.Sprintf("failed to unmarshal response: %v", err)}
	}
	if resp.Error != nil {
		return "", &ProviderError{Provider: openAIProvider, StatusCode: http.StatusOK, Message: resp.Error.Message}
	}
	if resp.OutputText != "" {
		return resp.OutputText, nil
	}

	var sb strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				sb.WriteString(c.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", &ProviderError{Provider: openAIProvider, StatusCode: http.StatusOK, Message: "no text output in response"}
	}
	return sb.String(), nil
}

// post sends a JSON request and returns the body of a 200 response.
func (o *OpenAIService) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: openAIProvider, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: openAIProvider, StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		o.logger.Debug("OpenAI request failed", "path", path, "status", resp.StatusCode)
		return nil, &ProviderError{Provider: openAIProvider, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage pulls error.message out of an error body, falling back to the raw text.
func errorMessage(body []byte) string {
	var wrapper struct {
		Error *openAIError `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error != nil && wrapper.Error.Message != "" {
		return wrapper.Error.Message
	}
	return strings.TrimSpace(string(body))
}

func maxTokensUnsupported(err *ProviderError) bool {
	msg := strings.ToLower(err.Message)
	return err.StatusCode == http.StatusBadRequest &&
		strings.Contains(msg, "max_tokens") && strings.Contains(msg, "not supported")
}
