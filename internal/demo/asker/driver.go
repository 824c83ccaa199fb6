package asker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/assistant"
)

type askRequest struct {
	Question string `json:"question"`
}

// Stats counts answers by HTTP status.
type Stats struct {
	Asked    int
	Answered int
	ByStatus map[int]int
}

type Service struct {
	cfg       Config
	log       *slog.Logger
	http      *http.Client
	generator *Generator

	mu    sync.Mutex
	stats Stats
}

func NewService(cfg Config, logger *slog.Logger, client *http.Client) (*Service, error) {
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	if cfg.QuestionsPerTick <= 0 {
		cfg.QuestionsPerTick = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Service{
		cfg:       cfg,
		log:       logger,
		http:      client,
		generator: NewGenerator(cfg.Seed),
		stats:     Stats{ByStatus: map[int]int{}},
	}, nil
}

// Run asks questions every Interval until ctx is done or MaxQuestions have
// been asked.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	ready := !s.cfg.WaitForReady
	for {
		if !ready {
			if err := s.checkReady(ctx); err != nil {
				s.log.Warn("askdb api is not ready yet", slog.Any("error", err))
			} else {
				ready = true
			}
		}
		if ready {
			for i := 0; i < s.cfg.QuestionsPerTick; i++ {
				if s.done() {
					s.logSummary()
					return nil
				}
				if err := s.askOnce(ctx); err != nil {
					s.log.Error("demo question failed", slog.Any("error", err))
				}
			}
		}

		select {
		case <-ctx.Done():
			s.logSummary()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	byStatus := make(map[int]int, len(s.stats.ByStatus))
	for status, count := range s.stats.ByStatus {
		byStatus[status] = count
	}
	return Stats{Asked: s.stats.Asked, Answered: s.stats.Answered, ByStatus: byStatus}
}

func (s *Service) done() bool {
	if s.cfg.MaxQuestions <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.Asked >= s.cfg.MaxQuestions
}

func (s *Service) checkReady(ctx context.Context) error {
	status, body, err := s.do(ctx, http.MethodGet, "/ready", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("ready status %d: %s", status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *Service) askOnce(ctx context.Context) error {
	question := s.generator.NextQuestion()
	s.mu.Lock()
	s.stats.Asked++
	s.mu.Unlock()

	start := time.Now()
	status, body, err := s.do(ctx, http.MethodPost, "/ask", askRequest{Question: question})
	if err != nil {
		return fmt.Errorf("ask request failed: %w", err)
	}

	var envelope assistant.Envelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("ask status %d: decode response: %w", status, err)
	}

	s.mu.Lock()
	s.stats.ByStatus[status]++
	if envelope.Error == nil {
		s.stats.Answered++
	}
	s.mu.Unlock()

	attrs := []any{
		slog.String("question", question),
		slog.Int("status", status),
		slog.Int("rows", len(envelope.Result)),
		slog.Duration("elapsed", time.Since(start)),
	}
	if envelope.Error != nil {
		s.log.Warn("demo question rejected", append(attrs, slog.String("error", *envelope.Error))...)
		return nil
	}
	if envelope.Query != nil {
		attrs = append(attrs, slog.String("sql", *envelope.Query))
	}
	s.log.Info("demo question answered", attrs...)
	return nil
}

func (s *Service) logSummary() {
	stats := s.Stats()
	s.log.Info("demo run finished",
		slog.Int("asked", stats.Asked),
		slog.Int("answered", stats.Answered),
		slog.Any("by_status", stats.ByStatus),
	)
}

func (s *Service) do(ctx context.Context, method, path string, requestBody any) (int, []byte, error) {
	var payload io.Reader
	if requestBody != nil {
		raw, err := json.Marshal(requestBody)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.APIBaseURL+path, payload)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if requestBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
