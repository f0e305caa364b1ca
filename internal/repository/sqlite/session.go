package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

var _ repository.SessionRepository = (*DB)(nil)

// CreateSession stores a session row. expires_at is kept as unix seconds so
// the expiry filter is a plain integer comparison.
func (db *DB) CreateSession(ctx context.Context, session *model.Session) error {
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sessions (token_hash, user_email, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		session.TokenHash,
		session.UserEmail,
		session.ExpiresAt.Unix(),
		session.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("session", "token")
		}
		return fmt.Errorf("sqlite: inserting session: %w", err)
	}
	return nil
}

// GetSession returns the live session for tokenHash. Expired rows are
// filtered here rather than swept, so they simply stop resolving.
func (db *DB) GetSession(ctx context.Context, tokenHash string, now time.Time) (*model.Session, error) {
	var (
		s         model.Session
		expiresAt int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT token_hash, user_email, expires_at, created_at
		 FROM sessions WHERE token_hash = ? AND expires_at > ?`,
		tokenHash, now.Unix(),
	).Scan(&s.TokenHash, &s.UserEmail, &expiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The hash is not echoed back; it is still a credential.
			return nil, apperror.NotFoundMessage("session not found")
		}
		return nil, fmt.Errorf("sqlite: getting session: %w", err)
	}
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &s, nil
}

// DeleteSession removes the session if it exists. Deleting an unknown hash
// is not an error.
func (db *DB) DeleteSession(ctx context.Context, tokenHash string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE token_hash = ?`, tokenHash); err != nil {
		return fmt.Errorf("sqlite: deleting session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session that expired at or before now.
func (db *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite: pruning sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
