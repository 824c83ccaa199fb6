package nl2sql

import (
	"testing"
	"time"
)

func TestNewProviderModel(t *testing.T) {
	model, err := NewProviderModel(ProviderConfig{APIKey: "g-key"})
	if err != nil {
		t.Fatalf("NewProviderModel() error = %v", err)
	}
	if _, ok := model.(*GeminiModel); !ok || model.Name() != DefaultGeminiModel {
		t.Fatalf("model = %T %q", model, model.Name())
	}

	model, err = NewProviderModel(ProviderConfig{Provider: "OpenAI", APIKey: "sk", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewProviderModel() error = %v", err)
	}
	if _, ok := model.(*OpenAIModel); !ok || model.Name() != "gpt-4o" {
		t.Fatalf("model = %T %q", model, model.Name())
	}

	if _, err := NewProviderModel(ProviderConfig{Provider: "claude", APIKey: "x"}); err == nil {
		t.Fatal("expected unsupported provider error")
	}
	for _, provider := range []string{ProviderGemini, ProviderOpenAI} {
		model, err := NewProviderModel(ProviderConfig{Provider: provider})
		if err == nil {
			t.Fatalf("%s: expected missing key error", provider)
		}
		if model != nil {
			t.Fatalf("%s: model = %#v, want nil interface on error", provider, model)
		}
	}
}

func TestNewProviderTranslator(t *testing.T) {
	translator, err := NewProviderTranslator(ProviderConfig{APIKey: "g-key", Model: "gemini-2.5-pro", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewProviderTranslator() error = %v", err)
	}
	if translator.Provider != ProviderGemini || translator.ModelName != "models/gemini-2.5-pro" {
		t.Fatalf("translator = %+v", translator)
	}
	if translator.Timeout != 5*time.Second {
		t.Fatalf("Timeout = %s", translator.Timeout)
	}
}
