package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"lexcal-scheduler/internal/store"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  execer
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Users = (*Store)(nil)
)

// New opens the database at path (":memory:" for an ephemeral one) and
// applies the schema. Writes go through BEGIN IMMEDIATE so a transaction
// holds the write lock from its first statement.
func New(path string) (*Store, error) {
	dsn := path + "?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// one writer; for :memory: this also keeps every query on the same database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, q: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			name          TEXT NOT NULL,
			role          TEXT NOT NULL CHECK (role IN ('lawyer', 'client', 'admin')),
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS appointments (
			id               TEXT PRIMARY KEY,
			lawyer_id        TEXT NOT NULL,
			client_id        TEXT NOT NULL,
			start_ms         INTEGER NOT NULL,
			duration_minutes INTEGER NOT NULL CHECK (duration_minutes > 0),
			title            TEXT NOT NULL DEFAULT '',
			location         TEXT NOT NULL DEFAULT '',
			participants     TEXT NOT NULL DEFAULT '[]',
			status           TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled')),
			request_message  TEXT NOT NULL DEFAULT '',
			response_message TEXT NOT NULL DEFAULT '',
			requested_ms     INTEGER NOT NULL,
			responded_ms     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_lawyer_start ON appointments(lawyer_id, start_ms)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_client ON appointments(client_id)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	return nil
}

// Migrate re-applies the schema; New already does this.
func (s *Store) Migrate(ctx context.Context) error { return s.migrate() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() { s.db.Close() }

// WithLawyerLock runs fn in an IMMEDIATE transaction. SQLite has a single
// writer, so this serialises all calendars, not just lawyerID's.
func (s *Store) WithLawyerLock(ctx context.Context, lawyerID string, fn func(store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&Store{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
