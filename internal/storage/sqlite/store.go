// Package sqlite persists accounts and class progress in a SQLite database
// using the pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/otaviokmkm/Drakantos-Inspired-MMORPG/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS progress (
	id TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Store provides SQLite-backed account and progress persistence.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a SQLite store at path and creates the tables if needed.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer at a time avoids SQLITE_BUSY under the write-behind flusher.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) LoadAccount(ctx context.Context, id string) (storage.AccountRecord, bool, error) {
	var record storage.AccountRecord
	ok, err := s.load(ctx, "accounts", id, &record)
	return record, ok, err
}

func (s *Store) SaveAccount(ctx context.Context, id string, record storage.AccountRecord) error {
	return s.save(ctx, "accounts", id, record)
}

func (s *Store) LoadProgress(ctx context.Context, id string) (storage.ProgressRecord, bool, error) {
	var record storage.ProgressRecord
	ok, err := s.load(ctx, "progress", id, &record)
	if ok {
		storage.MigrateProgress(&record)
	}
	return record, ok, err
}

func (s *Store) SaveProgress(ctx context.Context, id string, record storage.ProgressRecord) error {
	return s.save(ctx, "progress", id, record)
}

// table is always one of the two constants above, never caller input.
func (s *Store) load(ctx context.Context, table, id string, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, storage.ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return false, fmt.Errorf("id is required")
	}
	var data string
	err := s.sqlDB.QueryRowContext(ctx, "SELECT data FROM "+table+" WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s %s: %w", table, id, err)
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("decode %s %s: %w", table, id, err)
	}
	return true, nil
}

func (s *Store) save(ctx context.Context, table, id string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("id is required")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO `+table+` (id, data, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
`,
		id,
		string(data),
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save %s %s: %w", table, id, err)
	}
	return nil
}

var _ storage.Backend = (*Store)(nil)
