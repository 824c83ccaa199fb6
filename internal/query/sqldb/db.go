package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/SAP/go-hdb/driver"
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Target is a database URL resolved to a registered driver.
type Target struct {
	Driver     string
	DataSource string
	Dialect    string
}

func Resolve(url string) (Target, error) {
	url = strings.TrimSpace(url)
	lowered := strings.ToLower(url)
	switch {
	case url == "":
		return Target{}, fmt.Errorf("database url is required")
	case strings.HasPrefix(lowered, "postgres://"), strings.HasPrefix(lowered, "postgresql://"):
		return Target{Driver: "pgx", DataSource: url, Dialect: "PostgreSQL"}, nil
	case strings.HasPrefix(lowered, "sqlserver://"):
		return Target{Driver: "sqlserver", DataSource: url, Dialect: "Microsoft SQL Server (T-SQL)"}, nil
	case strings.HasPrefix(lowered, "hdb://"):
		return Target{Driver: "hdb", DataSource: url, Dialect: "SAP HANA"}, nil
	case strings.HasPrefix(lowered, "duckdb://"):
		return Target{Driver: "duckdb", DataSource: url[len("duckdb://"):], Dialect: "DuckDB"}, nil
	case strings.HasSuffix(lowered, ".duckdb"):
		return Target{Driver: "duckdb", DataSource: url, Dialect: "DuckDB"}, nil
	case strings.HasPrefix(lowered, "sqlite://"):
		return Target{Driver: "sqlite", DataSource: url[len("sqlite://"):], Dialect: "SQLite"}, nil
	case strings.HasPrefix(lowered, "file:"), lowered == ":memory:",
		strings.HasSuffix(lowered, ".db"), strings.HasSuffix(lowered, ".sqlite"):
		return Target{Driver: "sqlite", DataSource: url, Dialect: "SQLite"}, nil
	default:
		return Target{}, fmt.Errorf("unsupported database url scheme")
	}
}

// Open builds the process-wide pool and verifies it with a ping.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, Target, error) {
	target, err := Resolve(cfg.URL)
	if err != nil {
		return nil, Target{}, err
	}

	db, err := sql.Open(target.Driver, target.DataSource)
	if err != nil {
		return nil, Target{}, fmt.Errorf("open %s database: %w", target.Driver, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Target{}, fmt.Errorf("ping %s database: %w", target.Driver, err)
	}

	return db, target, nil
}
