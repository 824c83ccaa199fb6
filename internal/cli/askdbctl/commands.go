package askdbctl

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/assistant"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/query/sqldb"
	"github.com/askdb/askdb/internal/render"
	"github.com/askdb/askdb/internal/sqlguard"
)

var productCountQuery = sqlguard.MustValidate("SELECT COUNT(*) FROM products")

func exactArgs(n int, what string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("expected %s", what)
		}
		return nil
	}
}

func (a *app) askCommand() *cobra.Command {
	var asJSON, noChart bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Translate a question to SQL, run it and show the rows",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("expected a question")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			status, raw, err := a.call(cmd.Context(), http.MethodPost, "/ask", map[string]string{"question": question})
			if err != nil {
				return err
			}

			var envelope assistant.Envelope
			if decodeErr := json.Unmarshal(raw, &envelope); decodeErr != nil {
				if status >= 400 {
					return errorMessage(status, raw)
				}
				return fmt.Errorf("decode ask response: %w", decodeErr)
			}
			if asJSON {
				writeRaw(cmd.OutOrStdout(), raw)
			}
			if envelope.Error != nil {
				return fmt.Errorf("http %d: %s", status, *envelope.Error)
			}
			if status >= 400 {
				return errorMessage(status, raw)
			}
			if asJSON {
				return nil
			}
			return a.printEnvelope(cmd, envelope, noChart)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response envelope")
	cmd.Flags().BoolVar(&noChart, "no-chart", false, "skip the bar chart")
	return cmd
}

func (a *app) printEnvelope(cmd *cobra.Command, envelope assistant.Envelope, noChart bool) error {
	out := cmd.OutOrStdout()
	if envelope.Explanation != nil {
		a.heading(out, "Explanation")
		_, _ = fmt.Fprintln(out, *envelope.Explanation)
		_, _ = fmt.Fprintln(out)
	}
	if envelope.Query != nil {
		a.heading(out, "SQL")
		_, _ = fmt.Fprintln(out, *envelope.Query)
		_, _ = fmt.Fprintln(out)
	}

	a.heading(out, fmt.Sprintf("Result (%d rows)", len(envelope.Result)))
	if err := render.Table(out, envelope.Columns, envelope.Result); err != nil {
		return err
	}
	if noChart {
		return nil
	}
	chart, ok := render.SuggestChart(envelope.Columns, envelope.Result)
	if !ok {
		return nil
	}
	_, _ = fmt.Fprintln(out)
	return render.BarChart(out, chart, envelope.Result)
}

func (a *app) dataCommand(name, short string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, raw, err := a.call(cmd.Context(), http.MethodGet, "/"+name, nil)
			if err != nil {
				return err
			}
			if status >= 400 {
				return errorMessage(status, raw)
			}
			if asJSON {
				writeRaw(cmd.OutOrStdout(), raw)
				return nil
			}

			var body map[string][]query.Row
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("decode %s response: %w", name, err)
			}
			rows := body[name]
			var columns []string
			if len(rows) > 0 {
				columns = rows[0].Columns()
			}
			return render.Table(cmd.OutOrStdout(), columns, rows)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

func (a *app) statusCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, raw, err := a.call(cmd.Context(), http.MethodGet, "/"+name, nil)
			if err != nil {
				return err
			}
			if status >= 400 {
				return errorMessage(status, raw)
			}
			writeRaw(cmd.OutOrStdout(), raw)
			return nil
		},
	}
}

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <sql>",
		Short: "Check a statement against the read-only safety gate without running it",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("expected a SQL statement")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			validated, err := sqlguard.Validate(sqlguard.StripCodeFences(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", validated.SQL())
			return nil
		},
	}
}

func (a *app) modelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the configured provider serves",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadServerConfig()
			if err != nil {
				return err
			}
			model, err := nl2sql.NewProviderModel(nl2sql.ProviderConfig{
				Provider: cfg.AI.Provider,
				BaseURL:  cfg.AI.BaseURL,
				APIKey:   cfg.AI.APIKey,
				Model:    cfg.AI.Model,
				Timeout:  cfg.AI.Timeout,
			})
			if err != nil {
				return fmt.Errorf("%s model: %w", cfg.AI.Provider, err)
			}
			models, err := model.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			a.heading(out, fmt.Sprintf("%s models", cfg.AI.Provider))
			for _, info := range models {
				line := info.Name
				if info.DisplayName != "" {
					line += "  (" + info.DisplayName + ")"
				}
				if len(info.Methods) > 0 {
					line += "  " + strings.Join(info.Methods, ",")
				}
				_, _ = fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func (a *app) pingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Connect to the configured database and count products",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadServerConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireDatabase(); err != nil {
				return err
			}
			db, _, err := sqldb.Open(cmd.Context(), sqldb.DBConfig{URL: cfg.Database.URL, MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			result, err := sqldb.NewExecutor(db, cfg.Query.Timeout).Execute(cmd.Context(), productCountQuery)
			if err != nil {
				return err
			}
			if len(result.Rows) == 0 || result.Rows[0].Len() == 0 {
				return fmt.Errorf("count query returned no rows")
			}
			count := result.Rows[0].Values()[0]
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connected successfully! Products count: %s\n", render.FormatValue(count))
			return nil
		},
	}
}
