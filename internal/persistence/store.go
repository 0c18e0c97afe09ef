// Package persistence is the bridge's SQLite layer: a history row per
// completed delegation and a small KV table for breaker state.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS delegation_history (
	request_id   TEXT PRIMARY KEY,
	module       TEXT NOT NULL,
	operation    TEXT NOT NULL,
	priority     TEXT NOT NULL,
	success      INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	error_class  TEXT NOT NULL DEFAULT '',
	elapsed_ms   INTEGER NOT NULL,
	attempts     INTEGER NOT NULL,
	completed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_history_module ON delegation_history(module);
CREATE INDEX IF NOT EXISTS idx_history_completed ON delegation_history(completed_at);

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns <homeDir>/bridge.db.
func DefaultDBPath(homeDir string) string {
	return filepath.Join(homeDir, "bridge.db")
}

// Open opens (and initializes) the store at the given path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// KVSet upserts a key/value pair.
func (s *Store) KVSet(ctx context.Context, key, val string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, val)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// KVGet returns the value for key, or "" if absent.
func (s *Store) KVGet(ctx context.Context, key string) (string, error) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("kv get %q: %w", key, err)
	}
	return val, nil
}
