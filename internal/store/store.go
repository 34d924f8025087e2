// Package store persists organizations, accounts and transactions in SQLite.
// Each table carries a surrogate integer primary key; natural-key uniqueness
// and parent references are enforced by the schema, so a constraint violation
// surfaces as a database error rather than a silent overwrite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by the Find* lookups when no row matches the
// natural key.
var ErrNotFound = errors.New("store: not found")

// Optional text columns (domain, name) are stored as empty strings rather
// than NULL so that the UNIQUE(domain, name) constraint actually bites:
// SQLite treats NULLs as distinct in unique indexes.
const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id          INTEGER PRIMARY KEY,
	domain      TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	sfin_url    TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	UNIQUE (domain, name)
);

CREATE TABLE IF NOT EXISTS accounts (
	id                INTEGER PRIMARY KEY,
	external_id       TEXT NOT NULL,
	org_id            INTEGER NOT NULL REFERENCES organizations (id),
	name              TEXT NOT NULL,
	currency          TEXT NOT NULL,
	balance           TEXT NOT NULL,
	available_balance TEXT,
	balance_date      INTEGER NOT NULL,
	extra             TEXT,
	UNIQUE (external_id, org_id)
);

CREATE TABLE IF NOT EXISTS transactions (
	id            INTEGER PRIMARY KEY,
	external_id   TEXT NOT NULL,
	account_id    INTEGER NOT NULL REFERENCES accounts (id),
	posted        INTEGER,
	amount        TEXT NOT NULL,
	description   TEXT NOT NULL,
	transacted_at INTEGER,
	pending       INTEGER,
	extra         TEXT,
	UNIQUE (external_id, account_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_account_posted
	ON transactions (account_id, posted);
`

// Store wraps the SQLite handle. All reads and writes go through a Tx
// obtained from WithTx so that a reconciliation pass is one SQL transaction.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the
// schema exists. Foreign keys are always enforced.
func Open(path string) (*Store, error) {
	return open("file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
}

// OpenMemory opens a fresh in-memory database. Used by tests and useful
// for dry runs against a fetched snapshot.
func OpenMemory() (*Store, error) {
	return open("file::memory:?_pragma=foreign_keys(1)")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps the
	// in-memory database from vanishing between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Tx is one transactional unit of work. Every lookup and mutation method
// hangs off Tx; nothing written inside fn is visible until fn returns nil.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a single database transaction. The transaction is
// committed when fn returns nil and rolled back when fn returns an error
// or panics, so a failed pass leaves no partial writes behind.
func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("WithTx: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("WithTx: rollback after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("WithTx: commit: %w", err)
	}
	return nil
}
