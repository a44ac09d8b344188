package services

import (
	"fmt"
	"log/slog"

	"github.com/jwebster45206/stage-forge/internal/config"
)

// SupportedProviders lists the accepted LLM_PROVIDER values.
var SupportedProviders = []string{"openai", "anthropic"}

// NewLLMService builds the client for cfg.LLMProvider. Any OpenAI-compatible
// endpoint is reached through the openai provider and OPENAI_BASE_URL.
func NewLLMService(cfg *config.Config, logger *slog.Logger) (LLMService, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when using the openai provider")
		}
		return NewOpenAIService(cfg.OpenAIAPIKey, cfg.ModelName, cfg.OpenAIBaseURL, logger), nil
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required when using the anthropic provider")
		}
		return NewAnthropicService(cfg.AnthropicAPIKey, cfg.ModelName, logger), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q (supported: %v)", cfg.LLMProvider, SupportedProviders)
	}
}
