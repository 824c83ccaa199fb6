package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/askdb/askdb/internal/migrations"
)

const DefaultCacheTTL = 5 * time.Minute

// hanaCurrentSchema makes the HANA catalog query follow the session schema.
const hanaCurrentSchema = "CURRENT_SCHEMA"

// Introspector reads table and column names from the live database.
type Introspector struct {
	DB *sql.DB
	// Driver is the database/sql driver name; it selects the catalog query.
	Driver string
	Schema string

	cache *lru.LRU[string, Description]
}

// NewIntrospector reads schemaName, or the driver's default schema when
// schemaName is empty.
func NewIntrospector(db *sql.DB, driver, schemaName string, ttl time.Duration) *Introspector {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if schemaName = strings.TrimSpace(schemaName); schemaName == "" {
		schemaName = DefaultSchemaName(driver)
	}
	return &Introspector{
		DB:     db,
		Driver: driver,
		Schema: schemaName,
		cache:  lru.NewLRU[string, Description](8, nil, ttl),
	}
}

func (i *Introspector) Describe(ctx context.Context) (Description, error) {
	key := i.Driver + "/" + i.Schema
	if i.cache != nil {
		if cached, ok := i.cache.Get(key); ok {
			return cached, nil
		}
	}

	catalogSQL, args := i.catalogQuery()
	rows, err := i.DB.QueryContext(ctx, catalogSQL, args...)
	if err != nil {
		return Description{}, fmt.Errorf("introspect schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []Table
	index := map[string]int{}
	for rows.Next() {
		var tableName, columnName string
		if err := rows.Scan(&tableName, &columnName); err != nil {
			return Description{}, fmt.Errorf("scan schema row: %w", err)
		}
		position, ok := index[tableName]
		if !ok {
			position = len(tables)
			index[tableName] = position
			tables = append(tables, Table{Name: tableName})
		}
		tables[position].Columns = append(tables[position].Columns, columnName)
	}
	if err := rows.Err(); err != nil {
		return Description{}, fmt.Errorf("iterate schema rows: %w", err)
	}
	if len(tables) == 0 {
		return Description{}, fmt.Errorf("no tables found in schema %q", i.Schema)
	}

	description := Description{Tables: tables}
	if i.cache != nil {
		i.cache.Add(key, description)
	}
	return description, nil
}

// Invalidate drops the cached description.
func (i *Introspector) Invalidate() {
	if i.cache != nil {
		i.cache.Purge()
	}
}

// DefaultSchemaName is the schema a fresh connection of driver resolves
// unqualified table names against.
func DefaultSchemaName(driver string) string {
	switch driver {
	case "duckdb", "sqlite":
		return "main"
	case "sqlserver":
		return "dbo"
	case "hdb":
		return hanaCurrentSchema
	default:
		return "public"
	}
}

// The migration version table is bookkeeping, not business schema.
const skipVersionTable = ` AND table_name <> '` + migrations.VersionTable + `'`

func (i *Introspector) catalogQuery() (string, []any) {
	const columns = `SELECT table_name, column_name FROM information_schema.columns WHERE table_schema = `
	const order = ` ORDER BY table_name, ordinal_position`
	switch i.Driver {
	case "sqlite":
		return `SELECT m.name, p.name FROM sqlite_master m JOIN pragma_table_info(m.name) p ` +
			`WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' AND m.name <> '` + migrations.VersionTable + `' ` +
			`ORDER BY m.name, p.cid`, nil
	case "hdb":
		const hana = `SELECT TABLE_NAME, COLUMN_NAME FROM SYS.TABLE_COLUMNS WHERE TABLE_NAME <> '` +
			migrations.VersionTable + `' AND SCHEMA_NAME = `
		if i.Schema == hanaCurrentSchema {
			return hana + `CURRENT_SCHEMA ORDER BY TABLE_NAME, POSITION`, nil
		}
		return hana + `? ORDER BY TABLE_NAME, POSITION`, []any{i.Schema}
	case "sqlserver":
		return columns + `@p1` + skipVersionTable + order, []any{i.Schema}
	case "duckdb":
		return columns + `?` + skipVersionTable + order, []any{i.Schema}
	default:
		return columns + `$1` + skipVersionTable + order, []any{i.Schema}
	}
}
