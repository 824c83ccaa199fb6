package askdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/storage"
)

const defaultBaseURL = "http://localhost:8000"

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Env replaces the process environment when loading server config for
	// the models and ping commands.
	Env config.LookupFunc
	// ObjectStore replaces the archive store the history command builds from
	// server config.
	ObjectStore storage.ObjectStore
	Stdout      io.Writer
	Stderr io.Writer
}

// usageError marks failures caused by how the command was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// Run executes one askdbctl invocation and returns the process exit code:
// 0 on success, 1 when the command fails and 2 on a usage error.
func Run(ctx context.Context, args []string, defaults Options) int {
	if defaults.Stdout == nil {
		defaults.Stdout = io.Discard
	}
	if defaults.Stderr == nil {
		defaults.Stderr = io.Discard
	}

	app := newApp(defaults)
	root := app.rootCommand()
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(defaults.Stdout)
	root.SetErr(defaults.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	_, _ = fmt.Fprintf(defaults.Stderr, "error: %v\n", err)
	var usage *usageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

type app struct {
	opts  Options
	v     *viper.Viper
	style *pterm.Style
}

func newApp(opts Options) *app {
	v := viper.New()
	v.SetEnvPrefix("ASKDBCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return &app{opts: opts, v: v, style: pterm.NewStyle(pterm.FgCyan, pterm.Bold)}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "askdbctl",
		Short:         "Ask questions of an askdb server from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.readConfigFile()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			if len(args) > 0 {
				return usageErrorf("unknown command %q", args[0])
			}
			return usageErrorf("a command is required")
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.String("base-url", firstNonEmpty(a.opts.BaseURL, defaultBaseURL), "askdb API base URL")
	flags.String("api-key", a.opts.APIKey, "API key sent as X-API-Key")
	flags.Duration("timeout", durationOr(a.opts.Timeout, 60*time.Second), "HTTP timeout (e.g. 30s)")
	flags.String("config", "", "config file (default $HOME/.askdbctl.yaml)")
	_ = a.v.BindPFlags(flags)

	root.AddCommand(
		a.askCommand(),
		a.dataCommand("products", "List every product"),
		a.dataCommand("customers", "List every customer"),
		a.dataCommand("orders", "List orders with customer names, newest first"),
		a.statusCommand("health", "Report whether the server process is up"),
		a.statusCommand("ready", "Report whether the server can reach its dependencies"),
		a.validateCommand(),
		a.modelsCommand(),
		a.pingCommand(),
		a.historyCommand(),
	)
	return root
}

func (a *app) readConfigFile() error {
	path := strings.TrimSpace(a.v.GetString("config"))
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".askdbctl.yaml")
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		return usageErrorf("read config file %s: %w", path, err)
	}
	return nil
}

func (a *app) client() *http.Client {
	if a.opts.HTTPClient != nil {
		return a.opts.HTTPClient
	}
	return &http.Client{Timeout: durationOr(a.v.GetDuration("timeout"), 60*time.Second)}
}

func (a *app) heading(w io.Writer, text string) {
	_, _ = fmt.Fprintln(w, a.style.Sprint(text))
}

// call sends one request to the API and returns the status and raw body.
func (a *app) call(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	endpoint := strings.TrimRight(a.v.GetString("base-url"), "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey := strings.TrimSpace(a.v.GetString("api-key")); apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := a.client().Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, raw, nil
}

func (a *app) loadServerConfig() (config.Config, error) {
	if a.opts.Env != nil {
		return config.Load("askdbctl", a.opts.Env)
	}
	return config.LoadFromEnv("askdbctl")
}

// errorMessage pulls the "error" field out of an API error body.
func errorMessage(status int, raw []byte) error {
	var body struct {
		Error   string `json:"error"`
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		if body.TraceID != "" {
			return fmt.Errorf("http %d: %s (trace_id=%s)", status, body.Error, body.TraceID)
		}
		return fmt.Errorf("http %d: %s", status, body.Error)
	}
	return fmt.Errorf("http %d: %s", status, strings.TrimSpace(string(raw)))
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return "", false
	}
	return out.String(), true
}

func writeRaw(w io.Writer, raw []byte) {
	if pretty, ok := prettyJSON(raw); ok {
		_, _ = fmt.Fprintln(w, pretty)
		return
	}
	if len(raw) > 0 {
		_, _ = fmt.Fprintln(w, string(raw))
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
