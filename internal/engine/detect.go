package engine

import (
	"errors"
	"fmt"
)

// Provider names accepted by Detect.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// DetectConfig holds parameters for backend selection.
type DetectConfig struct {
	Provider      string
	OllamaBaseURL string
	OpenAIBaseURL string
	APIKey        string
}

// ErrMissingAPIKey is returned when the cloud provider is selected without a key.
var ErrMissingAPIKey = errors.New("engine: api key required for the openai provider")

// Detect returns the engine for the configured provider. An empty provider
// selects Ollama.
func Detect(cfg DetectConfig) (Engine, error) {
	switch cfg.Provider {
	case "", ProviderOllama:
		return NewOllamaEngine(cfg.OllamaBaseURL), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		return NewOpenAIEngine(cfg.OpenAIBaseURL, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("engine: unknown provider %q", cfg.Provider)
	}
}
