// Package migrations applies the session catalog schema from embedded SQL
// files named NNN_description.up.sql / NNN_description.down.sql.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const migrationTable = "insights_schema_migrations"

var migrationNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)

type Runner struct {
	fsys fs.FS
}

func NewRunner() *Runner {
	return &Runner{fsys: embeddedFS}
}

type migration struct {
	Version int64
	UpSQL   string
	DownSQL string
}

// Up applies pending migrations in version order. A steps value of zero
// applies everything pending.
func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, applied, err := r.prepare(ctx, db, false)
	if err != nil {
		return 0, err
	}

	done := make(map[int64]bool, len(applied))
	for _, version := range applied {
		done[version] = true
	}

	count := 0
	for _, item := range migrations {
		if done[item.Version] {
			continue
		}
		if steps > 0 && count >= steps {
			break
		}
		record := recordStep{
			script: item.UpSQL,
			mark:   `INSERT INTO ` + migrationTable + ` (version) VALUES ($1)`,
			label:  fmt.Sprintf("apply migration %d", item.Version),
		}
		if err := record.run(ctx, db, item.Version); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Down rolls back the most recently applied migrations. A steps value of
// zero rolls back one.
func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	migrations, applied, err := r.prepare(ctx, db, true)
	if err != nil {
		return 0, err
	}

	byVersion := make(map[int64]migration, len(migrations))
	for _, item := range migrations {
		byVersion[item.Version] = item
	}

	count := 0
	for _, version := range applied {
		if count >= steps {
			break
		}
		item, ok := byVersion[version]
		if !ok {
			return count, fmt.Errorf("applied migration %d is missing from source", version)
		}
		record := recordStep{
			script: item.DownSQL,
			mark:   `DELETE FROM ` + migrationTable + ` WHERE version = $1`,
			label:  fmt.Sprintf("rollback migration %d", version),
		}
		if err := record.run(ctx, db, version); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// prepare loads the migration sources, ensures the bookkeeping table and
// returns the applied versions, newest first when descending is set.
func (r *Runner) prepare(ctx context.Context, db *sql.DB, descending bool) ([]migration, []int64, error) {
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, nil, err
	}

	ensure := `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, ensure); err != nil {
		return nil, nil, fmt.Errorf("ensure migration table: %w", err)
	}

	order := "ASC"
	if descending {
		order = "DESC"
	}
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var applied []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, nil, fmt.Errorf("scan version: %w", err)
		}
		applied = append(applied, version)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows error: %w", err)
	}
	return migrations, applied, nil
}

// recordStep executes one migration script plus its bookkeeping write in a
// single transaction.
type recordStep struct {
	script string
	mark   string
	label  string
}

func (s recordStep) run(ctx context.Context, db *sql.DB, version int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.script); err != nil {
		return fmt.Errorf("%s: %w", s.label, err)
	}
	if _, err := tx.ExecContext(ctx, s.mark, version); err != nil {
		return fmt.Errorf("%s bookkeeping: %w", s.label, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s commit: %w", s.label, err)
	}
	return nil
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	names, err := fs.Glob(fsys, "sql/*.sql")
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}

	byVersion := map[int64]*migration{}
	for _, name := range names {
		base := path.Base(name)
		matches := migrationNamePattern.FindStringSubmatch(base)
		if matches == nil {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}

		script, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", name, err)
		}

		item := byVersion[version]
		if item == nil {
			item = &migration{Version: version}
			byVersion[version] = item
		}
		if matches[2] == "up" {
			item.UpSQL = string(script)
		} else {
			item.DownSQL = string(script)
		}
	}

	migrations := make([]migration, 0, len(byVersion))
	for _, item := range byVersion {
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", item.Version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", item.Version)
		}
		migrations = append(migrations, *item)
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, nil
}
