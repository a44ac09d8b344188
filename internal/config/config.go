package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    slog.Level

	LLMProvider     string // "openai" or "anthropic"
	ModelName       string // default model when a module does not name one
	OpenAIAPIKey    string
	OpenAIBaseURL   string // any OpenAI-compatible endpoint
	AnthropicAPIKey string

	RedisURL    string
	OutputDir   string // generated .lua files
	ModulesFile string // YAML prompt/module configuration

	MaxLayoutAttempts int
	RunTTL            time.Duration
	GenerateTimeout   time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		ModelName:       getEnv("MODEL_NAME", "gpt-4o"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379"),
		OutputDir:       getEnv("OUTPUT_DIR", "output"),
		ModulesFile:     getEnv("MODULES_FILE", "config/modules.yaml"),
	}

	var err error
	if cfg.MaxLayoutAttempts, err = strconv.Atoi(getEnv("MAX_LAYOUT_ATTEMPTS", "3")); err != nil {
		return nil, fmt.Errorf("invalid MAX_LAYOUT_ATTEMPTS: %w", err)
	}
	if cfg.MaxLayoutAttempts < 1 {
		return nil, fmt.Errorf("MAX_LAYOUT_ATTEMPTS must be at least 1, got %d", cfg.MaxLayoutAttempts)
	}
	if cfg.RunTTL, err = time.ParseDuration(getEnv("RUN_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid RUN_TTL: %w", err)
	}
	if cfg.GenerateTimeout, err = time.ParseDuration(getEnv("GENERATE_TIMEOUT", "10m")); err != nil {
		return nil, fmt.Errorf("invalid GENERATE_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// APIKey returns the key for the configured provider.
func (c *Config) APIKey() string {
	switch c.LLMProvider {
	case "anthropic":
		return c.AnthropicAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
