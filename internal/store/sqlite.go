// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides allocation history and presence persistence with automatic schema creation

package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS allocation_events (
			event_id      TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL,
			agent_address TEXT NOT NULL DEFAULT '',
			customer      TEXT NOT NULL DEFAULT '',
			action        TEXT NOT NULL,
			status        TEXT NOT NULL,
			skills_json   TEXT,
			ts            TEXT NOT NULL,

			CHECK (action IN ('allocated', 'status_changed', 'released', 'rejected'))
		);

		CREATE INDEX IF NOT EXISTS idx_allocation_agent ON allocation_events(agent_address, ts);
		CREATE INDEX IF NOT EXISTS idx_allocation_session ON allocation_events(session_id, ts);
		CREATE INDEX IF NOT EXISTS idx_allocation_ts ON allocation_events(ts DESC);

		CREATE TABLE IF NOT EXISTS agent_presence (
			agent_address TEXT PRIMARY KEY,
			online        INTEGER NOT NULL,
			updated_at    TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}
