package sqldb

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	duckdb "github.com/marcboeker/go-duckdb/v2"

	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/sqlguard"
)

const DefaultTimeout = 15 * time.Second

var numericLiteral = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

type Executor struct {
	DB      *sql.DB
	Timeout time.Duration
}

func NewExecutor(db *sql.DB, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Executor{DB: db, Timeout: timeout}
}

func (e *Executor) Execute(ctx context.Context, q sqlguard.ValidatedQuery) (query.Result, error) {
	if q.IsZero() {
		return query.Result{}, &query.ExecutionError{Err: errors.New("sql is required")}
	}
	if e.DB == nil {
		return query.Result{}, &query.ExecutionError{Err: errors.New("database is not configured")}
	}

	start := time.Now()
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := e.DB.Conn(ctx)
	if err != nil {
		return query.Result{}, executionError(ctx, err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, q.SQL())
	if err != nil {
		return query.Result{}, executionError(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, executionError(ctx, err)
	}
	typeNames := make([]string, len(columns))
	if columnTypes, err := rows.ColumnTypes(); err == nil {
		for i, columnType := range columnTypes {
			if i < len(typeNames) {
				typeNames[i] = strings.ToUpper(columnType.DatabaseTypeName())
			}
		}
	}

	resultRows := make([]query.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, executionError(ctx, err)
		}
		for i := range values {
			values[i] = normalizeValue(values[i], typeNames[i])
		}
		resultRows = append(resultRows, query.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, executionError(ctx, err)
	}

	return query.Result{
		Columns:  columns,
		Rows:     resultRows,
		Duration: time.Since(start),
	}, nil
}

func executionError(ctx context.Context, err error) error {
	timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
	return &query.ExecutionError{Err: err, TimedOut: timedOut}
}

func normalizeValue(value any, typeName string) any {
	switch typed := value.(type) {
	case []byte:
		if typeName == "UUID" && len(typed) == 16 {
			if id, err := uuid.FromBytes(typed); err == nil {
				return id.String()
			}
		}
		if isDecimalType(typeName) && numericLiteral.Match(typed) {
			return json.Number(string(typed))
		}
		if utf8.Valid(typed) {
			return string(typed)
		}
		return map[string]any{"type": "bytes", "base64": base64.StdEncoding.EncodeToString(typed)}
	case string:
		if isDecimalType(typeName) && numericLiteral.MatchString(typed) {
			return json.Number(typed)
		}
		return typed
	case int:
		return int64(typed)
	case int32:
		return int64(typed)
	case int16:
		return int64(typed)
	case int8:
		return int64(typed)
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	case float32:
		return float64(typed)
	case *big.Int:
		if typed == nil {
			return nil
		}
		return json.Number(typed.String())
	case duckdb.Decimal:
		if typed.Value == nil {
			return nil
		}
		return json.Number(typed.String())
	case duckdb.Interval:
		return formatInterval(typed)
	default:
		return typed
	}
}

// formatInterval renders a DuckDB INTERVAL as text, e.g. "1 month 2 days 1h30m0s".
func formatInterval(interval duckdb.Interval) string {
	var parts []string
	if interval.Months != 0 {
		parts = append(parts, plural(int64(interval.Months), "month"))
	}
	if interval.Days != 0 {
		parts = append(parts, plural(int64(interval.Days), "day"))
	}
	if interval.Micros != 0 || len(parts) == 0 {
		parts = append(parts, (time.Duration(interval.Micros) * time.Microsecond).String())
	}
	return strings.Join(parts, " ")
}

func plural(n int64, unit string) string {
	if n == 1 || n == -1 {
		return strconv.FormatInt(n, 10) + " " + unit
	}
	return strconv.FormatInt(n, 10) + " " + unit + "s"
}

func isDecimalType(typeName string) bool {
	return strings.HasPrefix(typeName, "NUMERIC") || strings.HasPrefix(typeName, "DECIMAL")
}
