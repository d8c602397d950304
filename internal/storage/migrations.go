package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations
var migrationFS embed.FS

// MigrationStatus represents the status of schema migrations.
type MigrationStatus struct {
	UpToDate bool
	Applied  []string
	Pending  []string
	Current  string
}

// Migrator applies the embedded, versioned schema for one driver.
type Migrator struct {
	db     *sql.DB
	driver string
}

// NewMigrator creates a migrator for driver ("sqlite" or "postgres").
func NewMigrator(db *sql.DB, driver string) *Migrator {
	return &Migrator{db: db, driver: driver}
}

// Check reports applied and pending migrations.
func (m *Migrator) Check(ctx context.Context) (*MigrationStatus, error) {
	if err := m.ensureSchemaMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	files, err := m.listMigrationFiles()
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read applied versions: %w", err)
	}

	status := &MigrationStatus{}
	for _, f := range files {
		if applied[f] {
			status.Applied = append(status.Applied, f)
			status.Current = f
			continue
		}
		status.Pending = append(status.Pending, f)
	}
	status.UpToDate = len(status.Pending) == 0
	return status, nil
}

// Migrate applies every pending migration in version order, one transaction each.
func (m *Migrator) Migrate(ctx context.Context) (*MigrationStatus, error) {
	status, err := m.Check(ctx)
	if err != nil {
		return nil, err
	}

	for _, version := range status.Pending {
		if err := m.apply(ctx, version); err != nil {
			return nil, fmt.Errorf("run migration %s: %w", version, err)
		}
		status.Applied = append(status.Applied, version)
		status.Current = version
	}
	status.Pending = nil
	status.UpToDate = true
	return status, nil
}

func (m *Migrator) apply(ctx context.Context, version string) error {
	body, err := fs.ReadFile(migrationFS, path.Join("migrations", m.dir(), version))
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range splitStatements(string(body)) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("record version: %w", err)
	}

	return tx.Commit()
}

func (m *Migrator) ensureSchemaMigrationsTable(ctx context.Context) error {
	var query string
	switch m.driver {
	case "postgres":
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)
		`
	default:
		query = `
			CREATE TABLE IF NOT EXISTS schema_migrations (
				version TEXT PRIMARY KEY,
				applied_at TEXT NOT NULL DEFAULT (datetime('now'))
			)
		`
	}
	_, err := m.db.ExecContext(ctx, query)
	return err
}

func (m *Migrator) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) listMigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrationFS, path.Join("migrations", m.dir()))
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (m *Migrator) dir() string {
	if m.driver == "postgres" {
		return "postgres"
	}
	return "sqlite"
}

// splitStatements splits a migration body on semicolons. Migrations do not
// contain semicolons inside literals.
func splitStatements(body string) []string {
	var out []string
	for _, part := range strings.Split(body, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
