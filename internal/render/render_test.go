package render

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askdb/askdb/internal/query"
)

func TestMain(m *testing.M) {
	pterm.DisableStyling()
	os.Exit(m.Run())
}

func salesRows() []query.Row {
	return []query.Row{
		query.NewRow([]string{"category", "revenue", "orders"}, []any{"Electronics", json.Number("2937.48"), int64(5)}),
		query.NewRow([]string{"category", "revenue", "orders"}, []any{"Furniture", json.Number("1207.00"), int64(2)}),
		query.NewRow([]string{"category", "revenue", "orders"}, []any{"Stationery", json.Number("29.65"), int64(3)}),
	}
}

func TestTableRendersHeaderAndCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, []string{"category", "revenue", "orders"}, salesRows()))

	out := buf.String()
	for _, want := range []string{"category", "revenue", "Electronics", "2937.48", "Stationery"} {
		assert.Contains(t, out, want)
	}
	assert.Less(t, strings.Index(out, "category"), strings.Index(out, "Electronics"))
}

func TestTableWithoutRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Table(&buf, nil, nil))
	assert.Equal(t, "(no rows)\n", buf.String())
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"Laptop", "Laptop"},
		{json.Number("12.50"), "12.50"},
		{float64(3.75), "3.75"},
		{int64(42), "42"},
		{true, "true"},
		{time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), "2025-01-05T00:00:00Z"},
		{map[string]any{"type": "bytes", "base64": "//4="}, `{"base64":"//4=","type":"bytes"}`},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatValue(tc.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "a b", truncate("a\nb", 5))
}

func TestSuggestChart(t *testing.T) {
	chart, ok := SuggestChart([]string{"category", "revenue", "orders"}, salesRows())
	require.True(t, ok)
	assert.Equal(t, Chart{X: "category", Y: "revenue"}, chart)

	numericOnly := []query.Row{
		query.NewRow([]string{"id", "price"}, []any{int64(1), 9.5}),
		query.NewRow([]string{"id", "price"}, []any{int64(2), 3.0}),
	}
	chart, ok = SuggestChart(nil, numericOnly)
	require.True(t, ok)
	assert.Equal(t, Chart{X: "price", Y: "id"}, chart)

	textOnly := []query.Row{query.NewRow([]string{"name"}, []any{"Alice"})}
	_, ok = SuggestChart(nil, textOnly)
	assert.False(t, ok)

	_, ok = SuggestChart([]string{"x"}, nil)
	assert.False(t, ok)
}

func TestSuggestChartSkipsNullsButNotText(t *testing.T) {
	rows := []query.Row{
		query.NewRow([]string{"name", "discount", "code"}, []any{"A", nil, "X1"}),
		query.NewRow([]string{"name", "discount", "code"}, []any{"B", float64(0.2), "7"}),
	}
	chart, ok := SuggestChart(nil, rows)
	require.True(t, ok)
	assert.Equal(t, "discount", chart.Y)
	assert.Equal(t, "name", chart.X)
}

func TestBarChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, BarChart(&buf, Chart{X: "category", Y: "revenue"}, salesRows()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "revenue by category\n"), out)
	assert.Contains(t, out, "Electronics")
	assert.Contains(t, out, "2937")
}

func TestBarChartScalesSmallValues(t *testing.T) {
	rows := []query.Row{
		query.NewRow([]string{"k", "v"}, []any{"a", 0.5}),
		query.NewRow([]string{"k", "v"}, []any{"b", 0.25}),
	}
	var buf bytes.Buffer
	require.NoError(t, BarChart(&buf, Chart{X: "k", Y: "v"}, rows))
	assert.Contains(t, buf.String(), "v by k (x200)")
}

func TestBarChartNothingToPlot(t *testing.T) {
	rows := []query.Row{query.NewRow([]string{"k", "v"}, []any{"a", "n/a"})}
	var buf bytes.Buffer
	require.NoError(t, BarChart(&buf, Chart{X: "k", Y: "v"}, rows))
	assert.Equal(t, "(nothing to chart)\n", buf.String())
}
