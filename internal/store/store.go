// Package store is the local record database. It keeps fetched and
// offline-created records with their links, the queue of operations that
// still have to reach the remote side, and the journal of screen events.
//
// Records keep their field values as a JSON document; the query model's
// conditions are evaluated on decoded rows, the info area, record id and
// link scope are pushed down to SQL.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

const (
	tableRecords = "records"
	tableLinks   = "links"
	tableQueue   = "offline_operations"
	tableJournal = "journal_entries"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		info_area  TEXT NOT NULL,
		record_id  TEXT NOT NULL,
		data       TEXT NOT NULL DEFAULT '{}',
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (info_area, record_id)
	)`,
	`CREATE TABLE IF NOT EXISTS links (
		info_area   TEXT NOT NULL,
		record_id   TEXT NOT NULL,
		name        TEXT NOT NULL DEFAULT '',
		target_area TEXT NOT NULL,
		target_id   TEXT NOT NULL,
		PRIMARY KEY (info_area, record_id, name, target_area)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_links_target
		ON links (target_area, target_id, info_area)`,
	`CREATE TABLE IF NOT EXISTS offline_operations (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id  TEXT NOT NULL,
		position    INTEGER NOT NULL,
		kind        TEXT NOT NULL,
		info_area   TEXT NOT NULL,
		record_id   TEXT NOT NULL,
		parent_area TEXT NOT NULL DEFAULT '',
		parent_id   TEXT NOT NULL DEFAULT '',
		op          TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'pending',
		attempts    INTEGER NOT NULL DEFAULT 0,
		last_error  TEXT NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_offline_record
		ON offline_operations (info_area, record_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_offline_parent
		ON offline_operations (parent_area, parent_id, info_area, status)`,
	`CREATE TABLE IF NOT EXISTS journal_entries (
		event_id    TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		occurred_at INTEGER NOT NULL,
		screen_id   TEXT NOT NULL DEFAULT '',
		record_area TEXT NOT NULL DEFAULT '',
		record_id   TEXT NOT NULL DEFAULT '',
		summary     TEXT NOT NULL,
		category    TEXT NOT NULL,
		weight      TEXT NOT NULL,
		payload     TEXT,
		PRIMARY KEY (record_area, record_id, occurred_at, event_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_record_time
		ON journal_entries (record_area, record_id, occurred_at DESC)`,
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed local database.
type Store struct {
	db *sql.DB
	sb *entsql.DialectBuilder
}

// Open opens (creating if needed) the database at dsn and migrates it.
// The pool is pinned to one connection: SQLite serialises writers anyway
// and ":memory:" databases exist per connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database. Call Migrate before use.
func New(db *sql.DB) *Store {
	return &Store{db: db, sb: entsql.Dialect(dialect.SQLite)}
}

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating store: %w", err)
		}
	}
	return nil
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *Store) inTx(ctx context.Context, fn func(q querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// exec runs a built statement.
func exec(ctx context.Context, q querier, b entsql.Querier) error {
	query, args := b.Query()
	_, err := q.ExecContext(ctx, query, args...)
	return err
}
