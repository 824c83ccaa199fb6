package nl2sql

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ProviderModel is a model that can also enumerate what the provider serves.
type ProviderModel interface {
	Model
	ModelLister
	Name() string
}

type ProviderConfig struct {
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

func NewProviderModel(cfg ProviderConfig) (ProviderModel, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderGemini:
		model, err := NewGeminiModel(GeminiConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return model, nil
	case ProviderOpenAI:
		model, err := NewOpenAIModel(OpenAIConfig{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}

// NewProviderTranslator wires a provider model into a ModelTranslator.
func NewProviderTranslator(cfg ProviderConfig) (*ModelTranslator, error) {
	model, err := NewProviderModel(cfg)
	if err != nil {
		return nil, err
	}
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderGemini
	}
	return NewModelTranslator(model, provider, model.Name(), cfg.Timeout), nil
}
