package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/sqlguard"
)

var (
	productsQuery  = sqlguard.MustValidate("SELECT * FROM products")
	customersQuery = sqlguard.MustValidate("SELECT * FROM customers")
	ordersQuery    = sqlguard.MustValidate(`SELECT o.id, c.name AS customer, o.total_amount, o.order_date
FROM orders o
JOIN customers c ON o.customer_id = c.id
ORDER BY o.order_date DESC`)
)

// fixedQueryHandler serves {"<key>": [rows...]} for a query known at build time.
func fixedQueryHandler(deps Dependencies, key string, q sqlguard.ValidatedQuery, exposeDBErrors bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if deps.Executor == nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "database is not configured")
			return
		}

		result, err := deps.Executor.Execute(r.Context(), q)
		if err != nil {
			traceID := observability.TraceIDFromContext(r.Context())
			if deps.Logger != nil {
				deps.Logger.ErrorContext(r.Context(), "fixed query failed",
					slog.String("trace_id", traceID),
					slog.String("resource", key),
					slog.String("error", observability.MaskSecrets(err.Error())),
				)
			}
			message := err.Error()
			if !exposeDBErrors {
				message = fmt.Sprintf("query execution failed (trace_id=%s)", traceID)
			}
			writeError(r.Context(), w, http.StatusInternalServerError, message)
			return
		}

		rows := result.Rows
		if rows == nil {
			rows = []query.Row{}
		}
		writeJSON(w, http.StatusOK, map[string]any{key: rows})
	})
}
