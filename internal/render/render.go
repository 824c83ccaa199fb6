package render

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/askdb/askdb/internal/query"
)

const maxCellWidth = 40

// Table writes rows as a boxed table with a header row.
func Table(w io.Writer, columns []string, rows []query.Row) error {
	if len(columns) == 0 && len(rows) > 0 {
		columns = rows[0].Columns()
	}
	if len(columns) == 0 {
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	}

	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, columns)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, column := range columns {
			value, _ := row.Get(column)
			cells[i] = truncate(FormatValue(value), maxCellWidth)
		}
		data = append(data, cells)
	}

	out, err := pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

// FormatValue renders a decoded JSON cell the way a person would write it.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		return v.Format(time.RFC3339)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	default:
		return fmt.Sprint(v)
	}
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// numericValue reports the float value of numeric cells.
func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}
