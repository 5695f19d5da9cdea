package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// SQLSessionStore persists sessions in the auth_sessions table created by
// the 002_auth_sessions migration.
type SQLSessionStore struct {
	db *sql.DB
}

func NewSQLSessionStore(db *sql.DB) (*SQLSessionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &SQLSessionStore{db: db}, nil
}

func (s *SQLSessionStore) Put(ctx context.Context, sess Session) error {
	const q = `
INSERT INTO auth_sessions (id, username, roles, issued_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username, roles = EXCLUDED.roles,
	issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at`
	if _, err := s.db.ExecContext(ctx, q, sess.ID, sess.Username, pq.Array(sess.Roles), sess.IssuedAt, sess.ExpiresAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) Get(ctx context.Context, id string) (Session, error) {
	const q = `SELECT id, username, roles, issued_at, expires_at FROM auth_sessions WHERE id = $1`
	var sess Session
	err := s.db.QueryRowContext(ctx, q, id).Scan(&sess.ID, &sess.Username, pq.Array(&sess.Roles), &sess.IssuedAt, &sess.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

func (s *SQLSessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpired removes sessions that expired before now and returns how
// many were removed.
func (s *SQLSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the underlying *sql.DB. When the DB wraps a pgx pool the
// pool itself stays open.
func (s *SQLSessionStore) Close() error {
	return s.db.Close()
}
