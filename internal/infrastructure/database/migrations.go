package database

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"
)

// MigrationsFS holds the schema files, named
// YYYYMMDD_HHMMSS_description.up.sql. The migrations package sets it at init.
var MigrationsFS fs.FS

const migrationSuffix = ".up.sql"

// migration is one versioned schema step.
type migration struct {
	version string // YYYYMMDD_HHMMSS
	name    string
	sql     string
}

// SchemaStatus describes how far the schema has been migrated.
type SchemaStatus struct {
	Version string   `json:"version,omitempty"` // latest applied, empty before the first
	Applied int      `json:"applied"`
	Pending []string `json:"pending,omitempty"`
}

// parseMigrationFile splits a schema file name into version and name.
func parseMigrationFile(file string) (version, name string, ok bool) {
	base, ok := strings.CutSuffix(file, migrationSuffix)
	if !ok {
		return "", "", false
	}
	date, rest, _ := strings.Cut(base, "_")
	clock, name, _ := strings.Cut(rest, "_")
	if len(date) != len("20060102") || len(clock) != len("150405") {
		return "", "", false
	}
	return date + "_" + clock, name, true
}

// loadMigrations reads every schema file in fsys, oldest first.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	if fsys == nil {
		return nil, nil
	}
	files, err := fs.Glob(fsys, "*"+migrationSuffix)
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	migrations := make([]migration, 0, len(files))
	for _, file := range files {
		version, name, ok := parseMigrationFile(file)
		if !ok {
			return nil, fmt.Errorf("migration %q: name must be YYYYMMDD_HHMMSS_description%s", file, migrationSuffix)
		}
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		migrations = append(migrations, migration{version: version, name: name, sql: string(body)})
	}

	slices.SortFunc(migrations, func(a, b migration) int { return strings.Compare(a.version, b.version) })
	for i := 1; i < len(migrations); i++ {
		if migrations[i].version == migrations[i-1].version {
			return nil, fmt.Errorf("duplicate migration version %s", migrations[i].version)
		}
	}
	return migrations, nil
}

// Migrate applies every pending migration in version order, each in its
// own transaction. A failing migration is rolled back; the ones before it
// stay applied and the next Migrate resumes from it.
func (db *DB) Migrate(ctx context.Context) error {
	_, pending, err := db.plan(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("applying migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaStatus reports the applied and pending schema versions.
func (db *DB) SchemaStatus(ctx context.Context) (SchemaStatus, error) {
	applied, pending, err := db.plan(ctx)
	if err != nil {
		return SchemaStatus{}, err
	}

	status := SchemaStatus{Applied: len(applied)}
	if len(applied) > 0 {
		status.Version = applied[len(applied)-1]
	}
	for _, m := range pending {
		status.Pending = append(status.Pending, m.version)
	}
	return status, nil
}

// plan returns the applied versions (ascending) and the migrations still to run.
func (db *DB) plan(ctx context.Context) ([]string, []migration, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return nil, nil, fmt.Errorf("creating migrations table: %w", err)
	}

	migrations, err := loadMigrations(MigrationsFS)
	if err != nil {
		return nil, nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, nil, fmt.Errorf("querying migrations: %w", err)
	}
	defer rows.Close()

	var applied []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, nil, fmt.Errorf("scanning migration row: %w", err)
		}
		applied = append(applied, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating migrations: %w", err)
	}

	var pending []migration
	for _, m := range migrations {
		if _, found := slices.BinarySearch(applied, m.version); !found {
			pending = append(pending, m)
		}
	}
	return applied, pending, nil
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.sql); err != nil {
		return fmt.Errorf("executing SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}
