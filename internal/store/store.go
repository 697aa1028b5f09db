// Package store keeps a SQLite history of settled suggestion sessions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"AIAssist/internal/cache"
	"AIAssist/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

const createSuggestionsTable = `
CREATE TABLE IF NOT EXISTS suggestions (
	id TEXT PRIMARY KEY,
	post_id INTEGER,
	type TEXT,
	tone TEXT,
	prompt TEXT,
	prompt_hash TEXT,
	retry BOOLEAN,
	phase TEXT,
	content TEXT,
	error TEXT,
	start_time DATETIME,
	end_time DATETIME
);`

const createPostIndex = `
CREATE INDEX IF NOT EXISTS idx_suggestions_post ON suggestions(post_id, start_time);`

// Store persists suggestion sessions
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (and migrates) the SQLite database at path
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range []string{createSuggestionsTable, createPostIndex} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a session
func (s *Store) Save(ctx context.Context, sess session.Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO suggestions
			(id, post_id, type, tone, prompt, prompt_hash, retry, phase, content, error, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.PostID, sess.Type, sess.Tone, sess.Prompt, cache.GeneratePromptKey(sess.Prompt),
		sess.Retry, string(sess.Phase), sess.Content, sess.Error, sess.StartTime, sess.EndTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Info("session saved", "session_id", sess.ID, "phase", sess.Phase)
	return nil
}

// Get loads a session by id
func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, post_id, type, tone, prompt, retry, phase, content, error, start_time, end_time
		FROM suggestions WHERE id = ?`, id)

	sess, err := scanSession(row)
	if err != nil {
		return session.Session{}, fmt.Errorf("session not found: %w", err)
	}
	return sess, nil
}

// Recent returns the latest sessions for a post, newest first
func (s *Store) Recent(ctx context.Context, postID int64, limit int) ([]session.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, post_id, type, tone, prompt, retry, phase, content, error, start_time, end_time
		FROM suggestions WHERE post_id = ? ORDER BY start_time DESC LIMIT ?`, postID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	defer rows.Close()

	sessions := []session.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return sessions, nil
}

// CountByPrompt returns how many times the exact prompt was sent
func (s *Store) CountByPrompt(ctx context.Context, prompt string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM suggestions WHERE prompt_hash = ?", cache.GeneratePromptKey(prompt)).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (session.Session, error) {
	var sess session.Session
	var phase string
	err := row.Scan(&sess.ID, &sess.PostID, &sess.Type, &sess.Tone, &sess.Prompt, &sess.Retry,
		&phase, &sess.Content, &sess.Error, &sess.StartTime, &sess.EndTime)
	if err != nil {
		return session.Session{}, err
	}
	sess.Phase = session.Phase(phase)
	return sess, nil
}
