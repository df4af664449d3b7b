package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/maloquacious/backdrop/internal/store"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using modernc.org/sqlite.
type SQLiteStore struct {
	dbPath         string
	db             *sql.DB
	expectedSchema string
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLiteStore.
func New(dbPath string, expectedSchema string) *SQLiteStore {
	return &SQLiteStore{
		dbPath:         dbPath,
		expectedSchema: expectedSchema,
	}
}

// Open opens the SQLite database with safe defaults.
func (s *SQLiteStore) Open() error {
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// every pooled connection to :memory: would get its own empty database
	if s.dbPath == store.MemoryPath {
		db.SetMaxOpenConns(1)
	}

	// Apply safe defaults
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// InitSchema creates the schema up to version and records every applied step.
func (s *SQLiteStore) InitSchema(version string) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	target := migrationIndex(version)
	if target < 0 {
		return fmt.Errorf("unknown schema version %q", version)
	}
	return s.apply(0, target)
}

// Upgrade applies the migrations between the recorded version and version.
func (s *SQLiteStore) Upgrade(version string) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	target := migrationIndex(version)
	if target < 0 {
		return fmt.Errorf("unknown schema version %q", version)
	}

	current, err := s.GetSchemaVersion()
	if err != nil {
		return err
	}
	if current == "" {
		return fmt.Errorf("datastore is not initialized")
	}
	from := migrationIndex(current)
	if from < 0 {
		return fmt.Errorf("datastore has unknown schema version %q", current)
	}
	if from > target {
		return fmt.Errorf("datastore schema %q is newer than %q", current, version)
	}
	if from == target {
		return nil
	}
	return s.apply(from+1, target)
}

// apply runs migrations[from..to] in a single transaction.
func (s *SQLiteStore) apply(from, to int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, m := range migrations[from : to+1] {
		if _, err := tx.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to apply schema %s: %w", m.version, err)
		}
		_, err = tx.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, strftime('%s', 'now'))`, m.version)
		if err != nil {
			return fmt.Errorf("failed to insert schema version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CheckState returns the current state of the datastore.
func (s *SQLiteStore) CheckState() (store.StoreState, error) {
	if s.db == nil {
		return store.StateMissing, store.ErrNotOpen
	}

	// Check if schema_migrations table exists
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'`).Scan(&count)
	if err != nil {
		return store.StateUninitialized, fmt.Errorf("failed to check schema_migrations table: %w", err)
	}

	if count == 0 {
		return store.StateUninitialized, nil
	}

	// Check schema version
	version, err := s.GetSchemaVersion()
	if err != nil {
		return store.StateUninitialized, fmt.Errorf("failed to get schema version: %w", err)
	}

	if version != s.expectedSchema {
		return store.StateVersionMismatch, nil
	}

	return store.StateReady, nil
}

// GetSchemaVersion returns the current schema version from the database.
func (s *SQLiteStore) GetSchemaVersion() (string, error) {
	if s.db == nil {
		return "", store.ErrNotOpen
	}

	var version string
	err := s.db.QueryRow(`SELECT version FROM schema_migrations ORDER BY applied_at DESC, rowid DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}

	return version, nil
}

// Get returns the setting stored under key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, store.ErrNotOpen
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts the setting so repeated writes keep a single row per key.
func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return store.ErrNotOpen
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write setting %q: %w", key, err)
	}
	return nil
}

// Remove deletes the setting; a missing key is not an error.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if s.db == nil {
		return store.ErrNotOpen
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove setting %q: %w", key, err)
	}
	return nil
}
