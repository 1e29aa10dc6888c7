// Package store persists orchestrator state in a SQLite database:
// sessions, workers, mailbox messages, and scheduled flows. tmux is
// the runtime source of truth; these records are the address book that
// maps ids to tmux coordinates and survives restarts.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cao-dev/cao/internal/util"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
	ErrLocked   = errors.New("state database locked by another process")
)

// lockTimeout bounds how long Open waits for another process's
// migration to finish.
const lockTimeout = 5 * time.Second

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dbPath. Only schema
// migration runs under an advisory lock, so concurrent first runs do
// not race; the lock is released before Open returns. WAL plus a busy
// timeout make the database itself safe to share, so independent
// invocations never block each other.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY between our own statements.
	db.SetMaxOpenConns(1)

	fileLock, err := util.AcquireLock(dbPath+".lock", lockTimeout)
	if err != nil {
		_ = db.Close()
		if errors.Is(err, util.ErrLockHeld) {
			return nil, ErrLocked
		}
		return nil, err
	}
	s := &Store{db: db}
	migrateErr := s.migrate(context.Background())
	_ = fileLock.Unlock()
	if migrateErr != nil {
		_ = db.Close()
		return nil, migrateErr
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS workers (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			tmux_session TEXT NOT NULL,
			tmux_window TEXT NOT NULL,
			agent_type TEXT NOT NULL,
			agent_profile TEXT NULL,
			parent_id TEXT NULL,
			status TEXT NOT NULL,
			last_active TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_workers_session ON workers(session_id);`,
		`CREATE TABLE IF NOT EXISTS inbox (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_receiver_status ON inbox(receiver_id, status, id);`,
		`CREATE TABLE IF NOT EXISTS flows (
			id TEXT PRIMARY KEY,
			worker_id TEXT NOT NULL,
			schedule TEXT NOT NULL,
			next_run_at TEXT NOT NULL
		);`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableText(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}
