package query

import (
	"context"
	"time"

	"github.com/askdb/askdb/internal/sqlguard"
)

type Result struct {
	Columns  []string
	Rows     []Row
	Duration time.Duration
}

// Executor runs a query that already passed the safety gate.
type Executor interface {
	Execute(ctx context.Context, q sqlguard.ValidatedQuery) (Result, error)
}

// ExecutionError carries the database failure unchanged so callers can show
// the driver's own message.
type ExecutionError struct {
	Err      error
	TimedOut bool
}

func (e *ExecutionError) Error() string {
	if e == nil || e.Err == nil {
		return "query execution failed"
	}
	return e.Err.Error()
}

func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
