package llm

import (
	"context"
	"fmt"
	"strings"

	"frameworks/pkg/config"
)

type Config struct {
	Provider  string
	Model     string
	APIKey    string
	APIURL    string
	MaxTokens int
}

func LoadConfig() Config {
	return Config{
		Provider:  config.GetEnv("LLM_PROVIDER", "openai"),
		Model:     config.GetEnv("LLM_MODEL", ""),
		APIKey:    config.GetEnv("LLM_API_KEY", ""),
		APIURL:    config.GetEnv("LLM_API_URL", ""),
		MaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 0),
	}
}

// Enabled reports whether enough is configured to build a provider. Ollama
// runs locally and needs no key.
func (c Config) Enabled() bool {
	if strings.TrimSpace(c.Model) == "" {
		return false
	}
	return c.APIKey != "" || strings.EqualFold(c.Provider, "ollama")
}

func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(cfg), nil
	case "ollama":
		if strings.TrimSpace(cfg.APIURL) == "" {
			cfg.APIURL = "http://localhost:11434/v1"
		}
		return NewOpenAIProvider(cfg), nil
	case "anthropic":
		return NewAnthropicProvider(cfg), nil
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}
