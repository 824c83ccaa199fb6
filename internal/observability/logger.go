package observability

import (
	"context"
	"io"
	"log/slog"

	"github.com/askdb/askdb/internal/config"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// maskedAttrs are log keys whose string values can carry DSNs or provider
// keys, for example a driver error echoing the connection string.
var maskedAttrs = map[string]bool{
	"error":        true,
	"database_url": true,
	"endpoint":     true,
	"url":          true,
}

// NewLogger builds the process logger. Every record carries the service and
// profile, and secrets inside error and URL attributes are masked.
func NewLogger(cfg config.Config, writer io.Writer) *slog.Logger {
	if writer == nil {
		writer = io.Discard
	}
	options := &slog.HandlerOptions{
		Level:       cfg.Observability.LogLevel,
		ReplaceAttr: maskAttr,
	}

	handler := slog.Handler(slog.NewTextHandler(writer, options))
	if cfg.Observability.LogJSON {
		handler = slog.NewJSONHandler(writer, options)
	}
	return slog.New(handler).With(
		slog.String("service", cfg.Service.Name),
		slog.String("profile", string(cfg.Profile)),
	)
}

func maskAttr(_ []string, attr slog.Attr) slog.Attr {
	if !maskedAttrs[attr.Key] {
		return attr
	}
	switch attr.Value.Kind() {
	case slog.KindString:
		return slog.String(attr.Key, MaskSecrets(attr.Value.String()))
	case slog.KindAny:
		if err, ok := attr.Value.Any().(error); ok && err != nil {
			return slog.String(attr.Key, MaskSecrets(err.Error()))
		}
	}
	return attr
}

func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(traceIDKey).(string); ok {
		return value
	}
	return ""
}
