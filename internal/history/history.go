package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Record is one answered or failed question.
type Record struct {
	ID          string
	AskedAt     time.Time
	TraceID     string
	Question    string
	SQL         string
	Explanation string
	RowCount    int
	Duration    time.Duration
	Stage       string
	ErrorKind   string
	Error       string
}

// NewRecord stamps a fresh ID and time on a record.
func NewRecord(traceID, question string) Record {
	return Record{
		ID:       uuid.NewString(),
		AskedAt:  time.Now().UTC(),
		TraceID:  traceID,
		Question: question,
	}
}

func (r Record) Failed() bool {
	return r.ErrorKind != ""
}

type Recorder interface {
	Record(ctx context.Context, rec Record)
}

// Nop discards records.
type Nop struct{}

func (Nop) Record(context.Context, Record) {}

// LogRecorder writes one ask_audit line per record.
type LogRecorder struct {
	Logger *slog.Logger
}

func (l LogRecorder) Record(ctx context.Context, rec Record) {
	if l.Logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String("ask_id", rec.ID),
		slog.String("trace_id", rec.TraceID),
		slog.String("question", rec.Question),
		slog.String("sql", rec.SQL),
		slog.Int("row_count", rec.RowCount),
		slog.Int64("duration_ms", rec.Duration.Milliseconds()),
		slog.String("stage", rec.Stage),
	}
	level := slog.LevelInfo
	if rec.Failed() {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error_kind", rec.ErrorKind), slog.String("error", rec.Error))
	}
	l.Logger.LogAttrs(ctx, level, "ask_audit", attrs...)
}

// Multi fans a record out to every recorder in order.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec Record) {
	for _, recorder := range m {
		if recorder != nil {
			recorder.Record(ctx, rec)
		}
	}
}
