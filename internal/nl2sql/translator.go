package nl2sql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultDialect = "PostgreSQL"

type Request struct {
	Question string
	// Schema holds one "- table(col, ...)" line per table.
	Schema  string
	Dialect string
}

type Result struct {
	SQL         string `json:"sql"`
	Explanation string `json:"explanation"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}

type TranslationError struct {
	Err      error
	TimedOut bool
}

func (e *TranslationError) Error() string {
	if e == nil || e.Err == nil {
		return "translation failed"
	}
	return e.Err.Error()
}

func (e *TranslationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ModelTranslator asks the model for SQL and for a one-sentence explanation
// of the question. Both calls run concurrently and both must succeed.
type ModelTranslator struct {
	Model     Model
	Provider  string
	ModelName string
	Timeout   time.Duration
}

func NewModelTranslator(model Model, provider, modelName string, timeout time.Duration) *ModelTranslator {
	return &ModelTranslator{Model: model, Provider: provider, ModelName: modelName, Timeout: timeout}
}

func (t *ModelTranslator) Translate(ctx context.Context, req Request) (Result, error) {
	if t.Model == nil {
		return Result{}, &TranslationError{Err: errors.New("language model is not configured")}
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var sqlText, explanation string
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		text, err := t.Model.Complete(groupCtx, SQLPrompt(req))
		if err != nil {
			return fmt.Errorf("generate sql: %w", err)
		}
		sqlText = strings.TrimSpace(text)
		if sqlText == "" {
			return errors.New("model returned empty SQL")
		}
		return nil
	})
	group.Go(func() error {
		text, err := t.Model.Complete(groupCtx, ExplanationPrompt(req))
		if err != nil {
			return fmt.Errorf("generate explanation: %w", err)
		}
		explanation = CleanExplanation(text)
		return nil
	})
	if err := group.Wait(); err != nil {
		return Result{}, &TranslationError{Err: err, TimedOut: isTimeout(ctx, err)}
	}

	return Result{
		SQL:         sqlText,
		Explanation: explanation,
		Provider:    t.Provider,
		Model:       t.ModelName,
	}, nil
}

func SQLPrompt(req Request) Prompt {
	dialect := strings.TrimSpace(req.Dialect)
	if dialect == "" {
		dialect = DefaultDialect
	}
	system := "You are an expert data analyst. You convert business questions into a single read-only " +
		dialect + " SQL query."
	user := fmt.Sprintf(
		"Convert this user question into a valid %s SQL query based on the following database schema:\n\n%s\n\nQuestion: %q\n\nRules:\n- Return only the SQL query (no explanations, no markdown)\n- It must start with SELECT\n- Use only the listed tables and columns",
		dialect,
		strings.TrimSpace(req.Schema),
		strings.TrimSpace(req.Question),
	)
	return Prompt{System: system, User: user}
}

func ExplanationPrompt(req Request) Prompt {
	return Prompt{User: fmt.Sprintf(
		"Explain in one short sentence what this SQL query does, in plain English:\n%q",
		strings.TrimSpace(req.Question),
	)}
}

// CleanExplanation drops markdown bold markers.
func CleanExplanation(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "**", ""))
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
