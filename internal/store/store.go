// Package store persists assessment sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"symptomguide/internal/assessment"
	"symptomguide/internal/logging"
)

// SessionStore keeps session snapshots in a local SQLite database. The
// whole session document is stored as JSON; state and generation are
// mirrored into columns for querying.
type SessionStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New opens (or creates) the SQLite database at the given path.
func New(path string) (*SessionStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SessionStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("session store opened at %s", path)
	return s, nil
}

func (s *SessionStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		generation INTEGER NOT NULL DEFAULT 0,
		document TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_state ON sessions(state);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Save upserts the session snapshot.
func (s *SessionStore) Save(ctx context.Context, sess assessment.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, generation, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			generation = excluded.generation,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		sess.ID, string(sess.State), sess.Generation, string(doc),
		sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	logging.StoreDebug("saved session %s (state %s, generation %d)", sess.ID, sess.State, sess.Generation)
	return nil
}

// Get loads one session by ID.
func (s *SessionStore) Get(ctx context.Context, id string) (assessment.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT document FROM sessions WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return assessment.Session{}, assessment.ErrNotPersisted
	}
	if err != nil {
		return assessment.Session{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	var sess assessment.Session
	if err := json.Unmarshal([]byte(doc), &sess); err != nil {
		return assessment.Session{}, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return sess, nil
}

// Delete removes a session. Deleting an unknown ID is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	logging.StoreDebug("deleted session %s", id)
	return nil
}

// List returns session snapshots ordered by most recent update, optionally
// filtered by state. limit <= 0 means no limit.
func (s *SessionStore) List(ctx context.Context, state assessment.State, limit int) ([]assessment.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT document FROM sessions"
	var args []interface{}
	if state != "" {
		query += " WHERE state = ?"
		args = append(args, string(state))
	}
	query += " ORDER BY updated_at DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []assessment.Session
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var sess assessment.Session
		if err := json.Unmarshal([]byte(doc), &sess); err != nil {
			return nil, fmt.Errorf("failed to decode session document: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// PurgeOlderThan deletes sessions not updated within the retention window
// and returns the number removed.
func (s *SessionStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-age).UTC()
	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE updated_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("purged %d sessions older than %s", n, age)
	}
	return n, nil
}
