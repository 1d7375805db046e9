// Package store provides the on-device SQLite cache for Ajanda records.
//
// The store holds three mutable collections (tasks, habits,
// habit_completions), each carrying a dirty flag and last-synced
// timestamp in dedicated columns, plus three read-only reference
// collections (task_types, subjects, topics) that mirror the backend.
//
// The database runs in embedded mode with WAL for concurrent reads.
// All mutations persist immediately; there is no write-behind buffer,
// so the reconciler's view is always consistent with disk between
// steps.
//
// Workflow:
//  1. The app mutates records locally, which sets dirty=1
//  2. The reconciler pushes dirty rows to the backend
//  3. Successful pushes clear dirty and stamp last_synced_at
//  4. Pulled rows overwrite local copies unless they are dirty
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store wraps the SQLite connection with Ajanda-specific functionality.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent
// reads. If it doesn't exist, it is created; call InitSchema before
// first use. The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(".ajanda/cache.db")
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(path string) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	st := &Store{
		conn: conn,
		path: path,
	}

	// Enable WAL mode for concurrent reads
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	-- Mutable collections
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		type_id TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',  -- JSON object
		due_at TEXT,
		completed INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		subject_id TEXT NOT NULL DEFAULT '',
		topic_id TEXT NOT NULL DEFAULT '',
		project_id TEXT NOT NULL DEFAULT '',
		parent_id TEXT NOT NULL DEFAULT '',
		visible INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,

		-- Local-only sync metadata
		dirty INTEGER NOT NULL DEFAULT 1,
		last_synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS habits (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		subject_id TEXT NOT NULL DEFAULT '',
		topic_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		frequency TEXT NOT NULL,
		weekdays TEXT NOT NULL DEFAULT '[]',  -- JSON array
		target_type TEXT NOT NULL DEFAULT '',
		target_count INTEGER NOT NULL DEFAULT 0,
		target_duration INTEGER NOT NULL DEFAULT 0,
		color TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		total_completions INTEGER NOT NULL DEFAULT 0,
		start_date TEXT NOT NULL,
		end_date TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,

		dirty INTEGER NOT NULL DEFAULT 1,
		last_synced_at TEXT
	);

	CREATE TABLE IF NOT EXISTS habit_completions (
		id TEXT PRIMARY KEY,
		habit_id TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		completed_at TEXT NOT NULL,
		completed_on TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 1,
		duration INTEGER NOT NULL DEFAULT 0,
		notes TEXT NOT NULL DEFAULT '',

		dirty INTEGER NOT NULL DEFAULT 1,
		last_synced_at TEXT
	);

	-- Reference collections (pulled, never pushed)
	CREATE TABLE IF NOT EXISTS task_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		color TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS topics (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL
	);

	-- Indexes for owner scans and dirty-set scans
	CREATE INDEX IF NOT EXISTS idx_tasks_owner ON tasks(owner_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_dirty ON tasks(dirty);
	CREATE INDEX IF NOT EXISTS idx_habits_owner ON habits(owner_id);
	CREATE INDEX IF NOT EXISTS idx_habits_dirty ON habits(dirty);
	CREATE INDEX IF NOT EXISTS idx_completions_owner ON habit_completions(owner_id);
	CREATE INDEX IF NOT EXISTS idx_completions_dirty ON habit_completions(dirty);
	CREATE INDEX IF NOT EXISTS idx_completions_habit ON habit_completions(habit_id);
	CREATE INDEX IF NOT EXISTS idx_topics_subject ON topics(subject_id);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// stringToNullString converts an optional string pointer for SQL.
func stringToNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullStringToString converts a nullable SQL string to a string pointer.
func nullStringToString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// marshalJSON serializes a value to its JSON text column form.
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
