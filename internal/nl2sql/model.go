package nl2sql

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultModelTimeout = 30 * time.Second

type Prompt struct {
	System string
	User   string
}

// Model is a text-in, text-out language model.
type Model interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

type ModelInfo struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name,omitempty"`
	Methods     []string `json:"methods,omitempty"`
}

type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// StatusError is a non-2xx reply from the model provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s request failed status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}

func readResponse(provider string, resp *http.Response) ([]byte, error) {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response body: %w", provider, err)
	}
	if resp.StatusCode >= 400 {
		return nil, &StatusError{Provider: provider, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}
