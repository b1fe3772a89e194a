// Package sqlite provides a durable local session store, the embed-host
// analog of the browser storage the original widget persisted ids in.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists session ids in a SQLite database file
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed initializes) the database at path
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS widget_sessions (
			business_id TEXT PRIMARY KEY,
			session_id  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the stored session id for a business, or ""
func (s *Store) Get(ctx context.Context, businessID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM widget_sessions WHERE business_id = ?`, businessID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session: %w", err)
	}
	return id, nil
}

// Set stores the session id for a business, replacing any previous one
func (s *Store) Set(ctx context.Context, businessID, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO widget_sessions (business_id, session_id, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(business_id) DO UPDATE SET
			session_id = excluded.session_id,
			updated_at = excluded.updated_at`,
		businessID, sessionID, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Delete removes the stored session id for a business
func (s *Store) Delete(ctx context.Context, businessID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM widget_sessions WHERE business_id = ?`, businessID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}
