package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/askdb/askdb/internal/assistant"
	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

// Asker answers questions; *assistant.Service in production.
type Asker interface {
	Ask(ctx context.Context, question string) assistant.Envelope
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Assistant         Asker
	Executor          query.Executor
	APIKeys           auth.APIKeyValidator
	AskLimiter        *RateLimiter
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "AI SQL Assistant backend is running"})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, observability.MaskSecrets(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	protect := func(scope string, next http.Handler) http.Handler {
		if !cfg.Auth.Required {
			return next
		}
		if deps.APIKeys == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but no API key validator configured")
			}
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "auth is required by configuration but no API keys are configured")
			})
		}
		return auth.Middleware(deps.Logger, deps.APIKeys, scope)(next)
	}

	exposeDBErrors := cfg.Query.ExposeDBErrors
	mux.Handle("GET /products", protect(auth.ScopeRead, fixedQueryHandler(deps, "products", productsQuery, exposeDBErrors)))
	mux.Handle("GET /customers", protect(auth.ScopeRead, fixedQueryHandler(deps, "customers", customersQuery, exposeDBErrors)))
	mux.Handle("GET /orders", protect(auth.ScopeRead, fixedQueryHandler(deps, "orders", ordersQuery, exposeDBErrors)))

	var ask http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAsk(deps, w, r)
	})
	if deps.AskLimiter != nil {
		ask = deps.AskLimiter.Middleware(ask)
	}
	mux.Handle("POST /ask", protect(auth.ScopeAsk, ask))

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	middlewares = append(middlewares, CORS(cfg.CORS.AllowedOrigins))
	return chain(mux, middlewares...)
}

// PingDatabase reports whether the shared pool can reach the database.
func PingDatabase(db interface{ PingContext(context.Context) error }) ReadinessCheck {
	if db == nil {
		return nil
	}
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error":    message,
		"trace_id": observability.TraceIDFromContext(ctx),
	})
}
