package schema

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

type Table struct {
	Name    string
	Columns []string
}

func (t Table) String() string {
	return fmt.Sprintf("- %s(%s)", t.Name, strings.Join(t.Columns, ", "))
}

type Description struct {
	Tables []Table
}

// String renders one "- table(col, col)" line per table.
func (d Description) String() string {
	lines := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		lines = append(lines, table.String())
	}
	return strings.Join(lines, "\n")
}

func (d Description) IsEmpty() bool {
	return len(d.Tables) == 0
}

type Source interface {
	Describe(ctx context.Context) (Description, error)
}

// Parse reads the line format produced by Description.String. Blank lines and
// lines starting with # are skipped.
func Parse(text string) (Description, error) {
	var tables []Table
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))

		open := strings.Index(line, "(")
		if open <= 0 || !strings.HasSuffix(line, ")") {
			return Description{}, fmt.Errorf("line %d: expected table(col, ...), got %q", lineNo, line)
		}
		name := strings.TrimSpace(line[:open])
		columns := make([]string, 0)
		for _, column := range strings.Split(line[open+1:len(line)-1], ",") {
			if column = strings.TrimSpace(column); column != "" {
				columns = append(columns, column)
			}
		}
		if len(columns) == 0 {
			return Description{}, fmt.Errorf("line %d: table %q has no columns", lineNo, name)
		}
		tables = append(tables, Table{Name: name, Columns: columns})
	}
	if err := scanner.Err(); err != nil {
		return Description{}, fmt.Errorf("read schema: %w", err)
	}
	if len(tables) == 0 {
		return Description{}, fmt.Errorf("schema has no tables")
	}
	return Description{Tables: tables}, nil
}

// Static always returns the same description.
type Static struct {
	Description Description
}

func (s Static) Describe(context.Context) (Description, error) {
	return s.Description, nil
}

// Commerce is the demo shop schema created by askdb-migrate.
func Commerce() Static {
	return Static{Description: Description{Tables: []Table{
		{Name: "products", Columns: []string{"id", "name", "category", "price"}},
		{Name: "customers", Columns: []string{"id", "name", "email"}},
		{Name: "orders", Columns: []string{"id", "customer_id", "total_amount", "order_date"}},
		{Name: "order_items", Columns: []string{"id", "order_id", "product_id", "quantity", "unit_price"}},
	}}}
}
