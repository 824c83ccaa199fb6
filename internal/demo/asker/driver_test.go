package asker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRunAsksUntilMaxQuestions(t *testing.T) {
	var (
		mu        sync.Mutex
		readyHits int
		questions []string
		apiKeys   []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ready":
			readyHits++
			if readyHits == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"error":"database unavailable"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"ready"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/ask":
			var req askRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode ask request: %v", err)
			}
			questions = append(questions, req.Question)
			apiKeys = append(apiKeys, r.Header.Get("X-API-Key"))
			if strings.HasPrefix(req.Question, "Delete") {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = w.Write([]byte(`{"question":"x","query":null,"explanation":null,"result":[],"error":"Only SELECT queries are allowed for safety."}`))
				return
			}
			_, _ = w.Write([]byte(`{"question":"x","query":"SELECT 1","explanation":"One.","result":[{"n":1}],"error":null}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIBaseURL = server.URL
	cfg.APIKey = "k1"
	cfg.Interval = 5 * time.Millisecond
	cfg.QuestionsPerTick = 2
	cfg.MaxQuestions = 5
	cfg.Seed = 1

	svc, err := NewService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), server.Client())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if readyHits != 2 {
		t.Fatalf("readyHits = %d, want 2", readyHits)
	}
	if len(questions) != 5 {
		t.Fatalf("questions = %d, want 5", len(questions))
	}
	for _, key := range apiKeys {
		if key != "k1" {
			t.Fatalf("X-API-Key = %q", key)
		}
	}

	stats := svc.Stats()
	if stats.Asked != 5 {
		t.Fatalf("Asked = %d", stats.Asked)
	}
	total := 0
	for _, count := range stats.ByStatus {
		total += count
	}
	if total != 5 || stats.Answered != stats.ByStatus[http.StatusOK] {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIBaseURL = server.URL
	cfg.Interval = 10 * time.Millisecond

	svc, err := NewService(cfg, nil, server.Client())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := svc.Run(ctx); err == nil {
		t.Fatal("Run() expected context error")
	}
	if svc.Stats().Asked != 0 {
		t.Fatalf("Asked = %d, want 0 while not ready", svc.Stats().Asked)
	}
}

func TestAskOnceRejectsUndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.APIBaseURL = server.URL
	svc, err := NewService(cfg, nil, server.Client())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	err = svc.askOnce(context.Background())
	if err == nil || !strings.Contains(err.Error(), "ask status 502") {
		t.Fatalf("askOnce() error = %v", err)
	}
}

func TestNewServiceRequiresBaseURL(t *testing.T) {
	if _, err := NewService(Config{}, nil, nil); err == nil {
		t.Fatal("expected error")
	}
}
