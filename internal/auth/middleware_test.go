package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:dashboard, k2:reporting:read")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	if validator.Len() != 2 {
		t.Fatalf("Len() = %d", validator.Len())
	}

	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Client != "dashboard" {
		t.Fatalf("Client = %q", identity.Client)
	}
	if !identity.HasScope(ScopeAsk) || !identity.HasScope(ScopeRead) {
		t.Fatalf("Scopes = %v", identity.Scopes)
	}

	identity, _ = validator.Validate(context.Background(), "k2")
	if identity.HasScope(ScopeAsk) {
		t.Fatal("k2 should not have the ask scope")
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"invalid", ":client", "k1:", "k1:c:admin", "k1:c:|", "a:b:c:d", "k1:a,k1:b"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("NewStaticAPIKeyValidator(%q) expected parse error", spec)
		}
	}
}

func TestMiddlewareRequiresKey(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:dashboard")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator, ScopeAsk)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/ask", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	if rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatal("expected WWW-Authenticate challenge")
	}

	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req = httptest.NewRequest(http.MethodPost, "/ask", nil)
	req.Header.Set("Authorization", "bearer k1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("lower-case bearer status = %d, want %d", rr.Code, http.StatusNoContent)
	}
}

func TestMiddlewareEnforcesScope(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k2:reporting:read")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	handler := Middleware(nil, validator, ScopeAsk)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	req.Header.Set("X-API-Key", "k2")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:dashboard")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	handler := Middleware(nil, validator, ScopeRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("expected identity in context")
		}
		if identity.Client != "dashboard" {
			t.Errorf("Client = %q", identity.Client)
		}
		if got := ClientID(r); got != "client:dashboard" {
			t.Errorf("ClientID() = %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set("Authorization", "Bearer k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestClientIDFallsBackToRemoteHost(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	if got := ClientID(req); got != "ip:10.1.2.3" {
		t.Fatalf("ClientID() = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := ClientID(req); got != "ip:203.0.113.9" {
		t.Fatalf("ClientID() = %q", got)
	}
}
