package migrations

import (
	"cmp"
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

// VersionTable records applied migration versions.
const VersionTable = "askdb_schema_migrations"

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_(.+)\.(up|down)\.sql$`)

// Runner applies the embedded migrations. The SQL is kept to types and
// syntax shared by PostgreSQL, SQLite and DuckDB.
type Runner struct {
	fsys        fs.FS
	placeholder string
}

// NewRunner returns a runner for the database/sql driver name driver.
func NewRunner(driver string) (*Runner, error) {
	switch driver {
	case "pgx":
		return &Runner{fsys: embeddedFS, placeholder: "$1"}, nil
	case "sqlite", "duckdb":
		return &Runner{fsys: embeddedFS, placeholder: "?"}, nil
	default:
		return nil, fmt.Errorf("demo migrations are not supported for driver %q", driver)
	}
}

type Status struct {
	Version int64
	Name    string
	Applied bool
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// state is the embedded migration list next to the versions the database
// has recorded.
type state struct {
	migrations []migration
	applied    map[int64]bool
}

func (r *Runner) load(ctx context.Context, db *sql.DB) (state, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return state{}, err
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+VersionTable+` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`); err != nil {
		return state{}, fmt.Errorf("ensure migration table: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT version FROM `+VersionTable)
	if err != nil {
		return state{}, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	st := state{migrations: migrations, applied: map[int64]bool{}}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return state{}, fmt.Errorf("scan version: %w", err)
		}
		st.applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return state{}, fmt.Errorf("rows error: %w", err)
	}

	known := make(map[int64]bool, len(migrations))
	for _, item := range migrations {
		known[item.Version] = true
	}
	for version := range st.applied {
		if !known[version] {
			return state{}, fmt.Errorf("applied migration %d is missing from source", version)
		}
	}
	return st, nil
}

// Up applies pending migrations in version order. steps <= 0 applies all.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	st, err := r.load(ctx, db)
	if err != nil {
		return 0, err
	}

	var pending []migration
	for _, item := range st.migrations {
		if !st.applied[item.Version] {
			pending = append(pending, item)
		}
	}
	if steps > 0 && len(pending) > steps {
		pending = pending[:steps]
	}

	mark := `INSERT INTO ` + VersionTable + ` (version) VALUES (` + r.placeholder + `)`
	for i, item := range pending {
		if err := runStep(ctx, db, "apply", item.Version, item.UpSQL, mark); err != nil {
			return i, err
		}
	}
	return len(pending), nil
}

// Down rolls back the newest applied migrations. steps <= 0 rolls back one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	st, err := r.load(ctx, db)
	if err != nil {
		return 0, err
	}

	var targets []migration
	for i := len(st.migrations) - 1; i >= 0 && len(targets) < steps; i-- {
		if st.applied[st.migrations[i].Version] {
			targets = append(targets, st.migrations[i])
		}
	}

	unmark := `DELETE FROM ` + VersionTable + ` WHERE version = ` + r.placeholder
	for i, item := range targets {
		if err := runStep(ctx, db, "rollback", item.Version, item.DownSQL, unmark); err != nil {
			return i, err
		}
	}
	return len(targets), nil
}

// Status lists every known migration and whether it has been applied.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]Status, error) {
	st, err := r.load(ctx, db)
	if err != nil {
		return nil, err
	}
	statuses := make([]Status, 0, len(st.migrations))
	for _, item := range st.migrations {
		statuses = append(statuses, Status{Version: item.Version, Name: item.Name, Applied: st.applied[item.Version]})
	}
	return statuses, nil
}

// runStep executes one script and its bookkeeping statement in a single
// transaction.
func runStep(ctx context.Context, db *sql.DB, verb string, version int64, script, bookkeeping string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("%s migration %d: %w", verb, version, err)
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return fmt.Errorf("record %s of migration %d: %w", verb, version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s of migration %d: %w", verb, version, err)
	}
	return nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	files, err := fs.Glob(fsys, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	byVersion := map[int64]*migration{}
	for _, file := range files {
		base := path.Base(file)
		matches := migrationNamePattern.FindStringSubmatch(base)
		if matches == nil {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}
		script, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", base, err)
		}

		item, ok := byVersion[version]
		if !ok {
			item = &migration{Version: version, Name: matches[2]}
			byVersion[version] = item
		}
		if matches[3] == "up" {
			item.UpSQL = string(script)
		} else {
			item.DownSQL = string(script)
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for version, item := range byVersion {
		switch {
		case strings.TrimSpace(item.UpSQL) == "":
			return nil, fmt.Errorf("migration %d missing up SQL", version)
		case strings.TrimSpace(item.DownSQL) == "":
			return nil, fmt.Errorf("migration %d missing down SQL", version)
		}
		migrations = append(migrations, *item)
	}
	slices.SortFunc(migrations, func(a, b migration) int { return cmp.Compare(a.Version, b.Version) })
	return migrations, nil
}
