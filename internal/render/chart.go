package render

import (
	"fmt"
	"io"
	"math"

	"github.com/pterm/pterm"

	"github.com/askdb/askdb/internal/query"
)

const maxBars = 25

// Chart picks which columns to plot.
type Chart struct {
	X string
	Y string
}

// SuggestChart puts the first non-numeric column on X and the first numeric
// column on Y. It reports false when no column is numeric.
func SuggestChart(columns []string, rows []query.Row) (Chart, bool) {
	if len(rows) == 0 {
		return Chart{}, false
	}
	if len(columns) == 0 {
		columns = rows[0].Columns()
	}

	var chart Chart
	for _, column := range columns {
		if isNumericColumn(column, rows) {
			if chart.Y == "" {
				chart.Y = column
			}
		} else if chart.X == "" {
			chart.X = column
		}
	}
	if chart.Y == "" {
		return Chart{}, false
	}
	if chart.X == "" {
		for _, column := range columns {
			if column != chart.Y {
				chart.X = column
				break
			}
		}
	}
	return chart, true
}

// isNumericColumn is true when every non-null value is a number and at
// least one value is present.
func isNumericColumn(column string, rows []query.Row) bool {
	seen := false
	for _, row := range rows {
		value, ok := row.Get(column)
		if !ok || value == nil {
			continue
		}
		if _, numeric := numericValue(value); !numeric {
			return false
		}
		seen = true
	}
	return seen
}

// BarChart draws chart.Y per chart.X as horizontal bars. Only the first
// maxBars rows are drawn.
func BarChart(w io.Writer, chart Chart, rows []query.Row) error {
	if len(rows) > maxBars {
		rows = rows[:maxBars]
	}

	values := make([]float64, 0, len(rows))
	labels := make([]string, 0, len(rows))
	peak := 0.0
	for i, row := range rows {
		raw, _ := row.Get(chart.Y)
		value, ok := numericValue(raw)
		if !ok {
			continue
		}
		label := fmt.Sprintf("#%d", i+1)
		if chart.X != "" {
			x, _ := row.Get(chart.X)
			label = truncate(FormatValue(x), 24)
		}
		values = append(values, value)
		labels = append(labels, label)
		peak = math.Max(peak, math.Abs(value))
	}
	if len(values) == 0 {
		_, err := fmt.Fprintln(w, "(nothing to chart)")
		return err
	}

	// pterm bars are integers; scale small magnitudes so they stay visible.
	scale := 1.0
	if peak > 0 && peak < 100 {
		scale = 100 / peak
	}
	bars := make(pterm.Bars, len(values))
	for i, value := range values {
		bars[i] = pterm.Bar{Label: labels[i], Value: int(math.Round(value * scale))}
	}

	title := fmt.Sprintf("%s by %s", chart.Y, chart.X)
	if scale != 1 {
		title += fmt.Sprintf(" (x%.4g)", scale)
	}
	out, err := pterm.DefaultBarChart.WithHorizontal().WithShowValue().WithBars(bars).Srender()
	if err != nil {
		return fmt.Errorf("render bar chart: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n%s\n", title, out)
	return err
}
