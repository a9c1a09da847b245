// Package store provides a SQLite-backed log of answered questions. Each
// exchange records who asked, what was asked, the answer and its sources, and
// whether the answer was served from cache. The log survives restarts and
// backs the history endpoint.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Exchange is one answered question.
type Exchange struct {
	// Caller identifies who asked.
	Caller string `json:"caller"`
	// Query is the question as submitted.
	Query string `json:"query"`
	// Answer is the text returned to the caller.
	Answer string `json:"answer"`
	// Sources lists the documents backing the answer.
	Sources []string `json:"sources"`
	// Cached reports whether the answer came from the response cache.
	Cached bool `json:"cached"`
	// CreatedAt is when the exchange was persisted.
	CreatedAt time.Time `json:"created_at"`
}

// HistoryStore persists and retrieves answered questions. Implementations
// must be safe for concurrent use.
type HistoryStore interface {
	// Append persists a single exchange.
	Append(ctx context.Context, ex Exchange) error
	// Recent returns the most recent n exchanges, newest first. An empty
	// caller returns exchanges across all callers.
	Recent(ctx context.Context, caller string, n int) ([]Exchange, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database. It
// resolves to ~/.pagent/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".pagent")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS exchanges (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    caller       TEXT    NOT NULL,
    query        TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      TEXT    NOT NULL,  -- JSON array of strings
    cached       INTEGER NOT NULL,
    created_at   INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_exchanges_caller_created
    ON exchanges (caller, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single exchange.
func (s *SQLiteStore) Append(ctx context.Context, ex Exchange) error {
	sources, err := json.Marshal(ex.Sources)
	if err != nil {
		return fmt.Errorf("store: encode sources: %w", err)
	}
	created := ex.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	const q = `INSERT INTO exchanges (caller, query, answer, sources, cached, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, ex.Caller, ex.Query, ex.Answer, string(sources), boolInt(ex.Cached), created.Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n exchanges, newest first. An empty caller
// matches all callers.
func (s *SQLiteStore) Recent(ctx context.Context, caller string, n int) ([]Exchange, error) {
	const q = `
SELECT caller, query, answer, sources, cached, created_at
FROM   exchanges
WHERE  (? = '' OR caller = ?)
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, caller, caller, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var exs []Exchange
	for rows.Next() {
		var ex Exchange
		var sources string
		var cached int
		var ts int64
		if err := rows.Scan(&ex.Caller, &ex.Query, &ex.Answer, &sources, &cached, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(sources), &ex.Sources); err != nil {
			return nil, fmt.Errorf("store: decode sources: %w", err)
		}
		ex.Cached = cached != 0
		ex.CreatedAt = time.Unix(ts, 0)
		exs = append(exs, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return exs, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
