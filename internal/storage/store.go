package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/krishimitr/assistant/internal/observability"
)

// Common errors
var (
	ErrConflict = errors.New("record conflict")
	ErrClosed   = errors.New("store closed")
)

// Options configures how the store is opened.
type Options struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	JournalMode     string // sqlite only
}

// Store is the persistent local knowledge base. Writes are serialized: a
// ReplaceAll in flight holds the write lock, so concurrent appends land after
// the replacement rather than being wiped by it.
type Store struct {
	db     *sql.DB
	driver string
	logger *observability.Logger
	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store and applies pending schema migrations.
func Open(ctx context.Context, opts Options, logger *observability.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.Nop()
	}

	var driverName string
	switch opts.Driver {
	case "sqlite", "":
		opts.Driver = "sqlite"
		driverName = "sqlite3"
	case "postgres":
		driverName = "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", opts.Driver)
	}

	db, err := sql.Open(driverName, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if opts.Driver == "sqlite" && opts.JournalMode != "" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode="+opts.JournalMode); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set journal mode: %w", err)
		}
	}

	status, err := NewMigrator(db, opts.Driver).Migrate(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Debug().
		Str("driver", opts.Driver).
		Str("schema_version", status.Current).
		Msg("Knowledge store opened")

	return &Store{db: db, driver: opts.Driver, logger: logger}, nil
}

// ReplaceAll clears every record and inserts records in one transaction.
// Duplicate queries within records are skipped. It returns the number inserted.
func (s *Store) ReplaceAll(ctx context.Context, records []Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_base`); err != nil {
		return 0, fmt.Errorf("clear knowledge base: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO knowledge_base (query_en, content, content_hi, source, hash)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING id
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, rec := range records {
		rec = rec.Normalize()
		if rec.Content == "" {
			continue
		}
		var id int64
		err := stmt.QueryRowContext(ctx, nullable(rec.Query), rec.Content, rec.ContentHI, rec.Source, rec.Hash).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug().Str("query_en", rec.Query).Msg("Skipping duplicate snapshot record")
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("insert record: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// Append inserts a single record and returns it with its assigned ID.
// A record whose query already exists yields ErrConflict.
func (s *Store) Append(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Record{}, ErrClosed
	}

	rec = rec.Normalize()
	if rec.Content == "" {
		return Record{}, fmt.Errorf("record content is required")
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO knowledge_base (query_en, content, content_hi, source, hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, nullable(rec.Query), rec.Content, rec.ContentHI, rec.Source, rec.Hash).Scan(&rec.ID)
	if isUniqueViolation(err) {
		return Record{}, fmt.Errorf("%w: query %q already cached", ErrConflict, rec.Query)
	}
	if err != nil {
		return Record{}, fmt.Errorf("insert record: %w", err)
	}
	return rec, nil
}

// All returns every record in ID order.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query_en, content, content_hi, source, hash
		FROM knowledge_base
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec   Record
			query sql.NullString
		)
		if err := rows.Scan(&rec.ID, &query, &rec.Content, &rec.ContentHI, &rec.Source, &rec.Hash); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Query = query.String
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_base`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// SchemaVersion returns the latest applied migration.
func (s *Store) SchemaVersion(ctx context.Context) (string, error) {
	status, err := NewMigrator(s.db, s.driver).Check(ctx)
	if err != nil {
		return "", err
	}
	return status.Current, nil
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
