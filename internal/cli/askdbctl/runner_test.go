package askdbctl

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/migrations"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func run(t *testing.T, args []string, opts Options) (int, string, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	opts.Stdout = &stdout
	opts.Stderr = &stderr
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	code := Run(context.Background(), args, opts)
	return code, stdout.String(), stderr.String()
}

func TestRunAskCommand(t *testing.T) {
	var gotMethod, gotPath, gotAPIKey string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"question":"revenue by category","query":"SELECT category, SUM(price) AS revenue FROM products GROUP BY category","explanation":"Totals product prices per category.","result":[{"category":"Electronics","revenue":1999.5},{"category":"Books","revenue":42}],"error":null}`))
	}))
	defer srv.Close()

	code, stdout, stderr := run(t, []string{"--base-url", srv.URL, "--api-key", "k1", "ask", "revenue", "by", "category"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if gotMethod != http.MethodPost || gotPath != "/ask" {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotAPIKey != "k1" {
		t.Fatalf("X-API-Key = %q", gotAPIKey)
	}
	if gotBody["question"] != "revenue by category" {
		t.Fatalf("question = %q", gotBody["question"])
	}
	for _, want := range []string{
		"Totals product prices per category.",
		"SELECT category, SUM(price) AS revenue FROM products GROUP BY category",
		"Result (2 rows)",
		"Electronics",
		"1999.5",
		"revenue by category",
	} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunAskNoChartAndJSON(t *testing.T) {
	body := `{"question":"q","query":"SELECT 1 AS one","explanation":"One.","result":[{"one":1}],"error":null}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	code, stdout, stderr := run(t, []string{"--base-url", srv.URL, "ask", "--json", "q"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if !strings.Contains(stdout, `"query": "SELECT 1 AS one"`) {
		t.Fatalf("stdout = %s", stdout)
	}

	code, stdout, _ = run(t, []string{"--base-url", srv.URL, "ask", "--no-chart", "q"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if strings.Contains(stdout, "one by") {
		t.Fatalf("chart rendered with --no-chart:\n%s", stdout)
	}
}

func TestRunAskReportsEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"question":"drop it","query":null,"explanation":null,"result":[],"error":"only SELECT queries are allowed"}`))
	}))
	defer srv.Close()

	code, _, stderr := run(t, []string{"--base-url", srv.URL, "ask", "drop it"}, Options{})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "http 422: only SELECT queries are allowed") {
		t.Fatalf("stderr = %s", stderr)
	}
}

func TestRunProductsCommand(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"products":[{"id":1,"name":"Laptop","price":1299.99},{"id":2,"name":"Mouse","price":25.5}]}`))
	}))
	defer srv.Close()

	code, stdout, stderr := run(t, []string{"--base-url", srv.URL, "products"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if gotPath != "/products" {
		t.Fatalf("path = %s", gotPath)
	}
	for _, want := range []string{"name", "Laptop", "1299.99", "Mouse"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestRunStatusCommands(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"database unavailable","trace_id":"t-1"}`))
		}
	}))
	defer srv.Close()

	code, stdout, _ := run(t, []string{"--base-url", srv.URL, "health"}, Options{})
	if code != 0 || !strings.Contains(stdout, `"status": "ok"`) {
		t.Fatalf("health code=%d stdout=%s", code, stdout)
	}

	code, _, stderr := run(t, []string{"--base-url", srv.URL, "ready"}, Options{})
	if code != 1 {
		t.Fatalf("ready exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "http 503: database unavailable (trace_id=t-1)") {
		t.Fatalf("stderr = %s", stderr)
	}
}

func TestRunReadsBaseURLFromEnvironment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	t.Setenv("ASKDBCTL_BASE_URL", srv.URL)
	code, _, stderr := run(t, []string{"health"}, Options{BaseURL: "http://127.0.0.1:1"})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
}

func TestRunReadsConfigFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "from-file" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "askdbctl.yaml")
	content := "base-url: " + srv.URL + "\napi-key: from-file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	code, _, stderr := run(t, []string{"--config", path, "health"}, Options{})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
}

func TestRunValidateCommand(t *testing.T) {
	code, stdout, _ := run(t, []string{"validate", "```sql\nSELECT * FROM products\n```"}, Options{})
	if code != 0 || !strings.Contains(stdout, "ok: SELECT * FROM products") {
		t.Fatalf("code=%d stdout=%s", code, stdout)
	}

	code, _, stderr := run(t, []string{"validate", "DROP TABLE products"}, Options{})
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "SELECT") {
		t.Fatalf("stderr = %s", stderr)
	}
}

func TestRunUsageErrors(t *testing.T) {
	tests := [][]string{
		nil,
		{"explode"},
		{"--no-such-flag", "health"},
		{"ask"},
		{"health", "extra"},
	}
	for _, args := range tests {
		code, _, _ := run(t, args, Options{})
		if code != 2 {
			t.Fatalf("Run(%q) exit code = %d, want 2", args, code)
		}
	}
}

func TestRunModelsCommand(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-5"},{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	env := mapLookup(map[string]string{
		"ASKDB_AI_PROVIDER": "openai",
		"ASKDB_AI_BASE_URL": srv.URL,
		"ASKDB_AI_API_KEY":  "sk-test",
	})
	code, stdout, stderr := run(t, []string{"models"}, Options{Env: env})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if !strings.Contains(stdout, "gpt-5") || !strings.Contains(stdout, "gpt-4o-mini") {
		t.Fatalf("stdout = %s", stdout)
	}

	code, _, stderr = run(t, []string{"models"}, Options{Env: mapLookup(map[string]string{})})
	if code != 1 || !strings.Contains(stderr, "api key is required") {
		t.Fatalf("code=%d stderr=%s", code, stderr)
	}
}

func TestRunPingCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	runner, err := migrations.NewRunner("sqlite")
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	if _, err := runner.Up(context.Background(), db, 0); err != nil {
		t.Fatalf("Up() error = %v", err)
	}
	_ = db.Close()

	env := mapLookup(map[string]string{"DATABASE_URL": "sqlite://" + path})
	code, stdout, stderr := run(t, []string{"ping"}, Options{Env: env})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr)
	}
	if strings.TrimSpace(stdout) != "Connected successfully! Products count: 8" {
		t.Fatalf("stdout = %q", stdout)
	}

	code, _, stderr = run(t, []string{"ping"}, Options{Env: mapLookup(map[string]string{})})
	if code != 1 || !strings.Contains(stderr, "database url is required") {
		t.Fatalf("code=%d stderr=%s", code, stderr)
	}
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
