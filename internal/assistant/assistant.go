package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/sqlguard"
)

const MissingQuestionMessage = "Missing 'question' field in request body."

var ErrNotConfigured = errors.New("question answering is not configured: language model API key is missing")

type Service struct {
	// Translator is nil when no model API key is configured.
	Translator nl2sql.Translator
	Executor   query.Executor
	Schema     schema.Source
	Dialect    string
	// ExposeDBErrors returns driver messages to callers verbatim. When false
	// they are replaced by a message carrying the trace ID.
	ExposeDBErrors bool
	Recorder       history.Recorder
	Logger         *slog.Logger
}

// Ask never returns an error: every failure is folded into the envelope.
func (s *Service) Ask(ctx context.Context, question string) Envelope {
	run := &askRun{
		service: s,
		ctx:     ctx,
		started: time.Now(),
		env: Envelope{
			Question: question,
			Stage:    StageReceived,
			TraceID:  observability.TraceIDFromContext(ctx),
		},
	}
	run.ask()
	run.finish()
	return run.env
}

type askRun struct {
	service    *Service
	ctx        context.Context
	started    time.Time
	stageStart time.Time
	env        Envelope
}

func (r *askRun) ask() {
	s := r.service
	if strings.TrimSpace(r.env.Question) == "" {
		r.fail(KindBadRequest, errors.New(MissingQuestionMessage), MissingQuestionMessage)
		return
	}

	r.enter(StageTranslating)
	if s.Translator == nil {
		r.fail(KindTranslationFailed, ErrNotConfigured, ErrNotConfigured.Error())
		return
	}
	description, err := r.describeSchema()
	if err != nil {
		r.fail(KindTranslationFailed, err, err.Error())
		return
	}
	translated, err := s.Translator.Translate(r.ctx, nl2sql.Request{
		Question: r.env.Question,
		Schema:   description.String(),
		Dialect:  s.dialect(),
	})
	if err != nil {
		var translationErr *nl2sql.TranslationError
		if errors.As(err, &translationErr) && translationErr.TimedOut {
			r.fail(KindTimeout, err, "language model request timed out")
			return
		}
		r.fail(KindTranslationFailed, err, err.Error())
		return
	}

	r.enter(StageValidating)
	validated, err := sqlguard.Validate(sqlguard.StripCodeFences(translated.SQL))
	if err != nil {
		var rejection *sqlguard.Rejection
		if errors.As(err, &rejection) {
			observability.IncrementSQLRejection(string(rejection.Reason))
		}
		r.log(slog.LevelDebug, "generated sql rejected", slog.String("sql", translated.SQL))
		r.fail(KindValidationRejected, err, err.Error())
		return
	}

	r.enter(StageExecuting)
	if s.Executor == nil {
		r.fail(KindExecutionFailed, errors.New("query executor is not configured"), "query executor is not configured")
		return
	}
	result, err := s.Executor.Execute(r.ctx, validated)
	if err != nil {
		var execErr *query.ExecutionError
		if errors.As(err, &execErr) && execErr.TimedOut {
			r.fail(KindTimeout, err, "query execution timed out")
			return
		}
		message := err.Error()
		if !s.ExposeDBErrors {
			message = fmt.Sprintf("query execution failed (trace_id=%s)", r.env.TraceID)
		}
		r.fail(KindExecutionFailed, err, message)
		return
	}
	observability.ObserveResultRows(len(result.Rows))

	r.enter(StageDone)
	sqlText := validated.SQL()
	explanation := translated.Explanation
	r.env.Query = &sqlText
	r.env.Explanation = &explanation
	r.env.Columns = result.Columns
	r.env.Result = result.Rows
}

func (r *askRun) describeSchema() (schema.Description, error) {
	if r.service.Schema == nil {
		return schema.Commerce().Description, nil
	}
	description, err := r.service.Schema.Describe(r.ctx)
	if err != nil {
		return schema.Description{}, fmt.Errorf("describe schema: %w", err)
	}
	return description, nil
}

func (s *Service) dialect() string {
	if s.Dialect == "" {
		return nl2sql.DefaultDialect
	}
	return s.Dialect
}

// enter closes the timing of the current stage and starts the next one.
func (r *askRun) enter(next Stage) {
	now := time.Now()
	if r.env.Stage != StageReceived {
		observability.ObserveAskStage(string(r.env.Stage), now.Sub(r.stageStart))
	}
	r.log(slog.LevelDebug, "ask stage", slog.String("from", string(r.env.Stage)), slog.String("to", string(next)))
	r.env.Stage = next
	r.stageStart = now
}

func (r *askRun) fail(kind Kind, err error, message string) {
	if r.env.Stage != StageReceived {
		observability.ObserveAskStage(string(r.env.Stage), time.Since(r.stageStart))
	}
	r.env.Kind = kind
	r.env.Err = err
	r.env.Error = &message
	r.env.Query = nil
	r.env.Explanation = nil
	r.env.Columns = nil
	r.env.Result = nil
}

func (r *askRun) finish() {
	elapsed := time.Since(r.started)
	env := r.env

	rec := history.NewRecord(env.TraceID, env.Question)
	rec.Duration = elapsed
	rec.Stage = string(env.Stage)
	rec.RowCount = len(env.Result)
	if env.Query != nil {
		rec.SQL = *env.Query
	}
	if env.Explanation != nil {
		rec.Explanation = *env.Explanation
	}

	if env.Failed() {
		observability.ObserveAsk(string(env.Kind), string(env.Stage))
		rec.ErrorKind = string(env.Kind)
		rec.Error = *env.Error
		r.log(slog.LevelWarn, "ask_failed",
			slog.String("stage", string(env.Stage)),
			slog.String("error_kind", string(env.Kind)),
			slog.String("error", observability.MaskSecrets(errorText(env.Err))),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
		)
	} else {
		observability.ObserveAsk("ok", string(env.Stage))
		r.log(slog.LevelInfo, "ask_completed",
			slog.Int("row_count", len(env.Result)),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
		)
	}

	if r.service.Recorder != nil {
		r.service.Recorder.Record(r.ctx, rec)
	}
}

func (r *askRun) log(level slog.Level, msg string, attrs ...slog.Attr) {
	if r.service.Logger == nil {
		return
	}
	attrs = append(attrs, slog.String("trace_id", r.env.TraceID))
	r.service.Logger.LogAttrs(r.ctx, level, msg, attrs...)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
