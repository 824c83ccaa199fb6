package askdbctl

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/render"
	"github.com/askdb/askdb/internal/storage"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

var historyColumns = []string{"asked_at", "question", "rows", "duration_ms", "status"}

func (a *app) historyCommand() *cobra.Command {
	var (
		date    string
		service string
		limit   int
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the questions the server archived for one day",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return usageErrorf("invalid --date %q: expected YYYY-MM-DD", date)
				}
				day = parsed
			}
			if limit < 0 {
				return usageErrorf("--limit must be >= 0")
			}

			store, err := a.archiveStore(cmd)
			if err != nil {
				return err
			}
			records, err := history.ReadArchive(cmd.Context(), store, service, day)
			if err != nil {
				return err
			}
			if limit > 0 && len(records) > limit {
				records = records[len(records)-limit:]
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			a.heading(out, fmt.Sprintf("History %s (%d questions)", day.Format(time.DateOnly), len(records)))
			rows := make([]query.Row, 0, len(records))
			for _, rec := range records {
				status := "ok"
				if rec.Failed() {
					status = rec.ErrorKind
				}
				rows = append(rows, query.NewRow(historyColumns, []any{
					rec.AskedAt.Format(time.RFC3339),
					rec.Question,
					rec.RowCount,
					rec.Duration.Milliseconds(),
					status,
				}))
			}
			return render.Table(out, historyColumns, rows)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "UTC day to read, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&service, "service", "askdb-api", "service name the archive was written under")
	cmd.Flags().IntVar(&limit, "limit", 0, "show only the newest N questions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print records as JSON")
	return cmd
}

func (a *app) archiveStore(cmd *cobra.Command) (storage.ObjectStore, error) {
	if a.opts.ObjectStore != nil {
		return a.opts.ObjectStore, nil
	}
	cfg, err := a.loadServerConfig()
	if err != nil {
		return nil, err
	}
	storeCfg := cfg.ObjectStore
	storeCfg.AutoCreateBucket = false
	return s3store.New(cmd.Context(), storeCfg)
}
