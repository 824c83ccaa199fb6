package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/askdb/askdb/internal/observability"
)

type contextKey string

const identityKey contextKey = "auth_identity"

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok
}

// Middleware rejects requests without a valid key that carries scope. An
// empty scope only requires a valid key.
func Middleware(logger *slog.Logger, validator APIKeyValidator, scope string) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, status, reason := authenticate(r, validator, scope)
			if status != 0 {
				logger.WarnContext(r.Context(), "request denied",
					slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.String("reason", reason),
					slog.String("client", identity.Client),
				)
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="askdb"`)
				}
				writeError(w, r, status, reason)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// authenticate returns a zero status when the request may proceed.
func authenticate(r *http.Request, validator APIKeyValidator, scope string) (Identity, int, string) {
	apiKey := extractAPIKey(r)
	if apiKey == "" {
		return Identity{}, http.StatusUnauthorized, "missing API key"
	}
	identity, ok := validator.Validate(r.Context(), apiKey)
	if !ok {
		return Identity{Client: observability.MaskSecret(apiKey)}, http.StatusUnauthorized, "invalid API key"
	}
	if scope != "" && !identity.HasScope(scope) {
		return identity, http.StatusForbidden, "API key lacks the " + scope + " scope"
	}
	return identity, 0, ""
}

// ClientID names the caller for rate limiting: the authenticated client when
// there is one, otherwise the remote host.
func ClientID(r *http.Request) string {
	if identity, ok := IdentityFromContext(r.Context()); ok {
		return "client:" + identity.Client
	}
	host := r.RemoteAddr
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		host = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	} else if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return "ip:" + host
}

func extractAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    message,
		"trace_id": observability.TraceIDFromContext(r.Context()),
	})
}
