package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/learnify/internal/apperror"
	"github.com/sakif/learnify/internal/model"
	"github.com/sakif/learnify/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, password_hash, avatar_url, created_at, updated_at`

// CreateUser inserts a new account. The email must already be normalized.
// A duplicate email, including one inserted by a concurrent request between
// the caller's check and this insert, is reported as a Conflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByEmail looks a user up by email, ignoring case.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE`, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", email, err)
	}
	return u, nil
}

// UpdateUserName changes the display name and returns the updated record.
func (db *DB) UpdateUserName(ctx context.Context, email, name string) (*model.User, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET name = ?, updated_at = ? WHERE email = ? COLLATE NOCASE`,
		name, time.Now().UTC(), email,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating name for %s: %w", email, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("user", email)
	}

	return db.GetUserByEmail(ctx, email)
}

// UpsertUserByEmail creates the user if the email is new, otherwise
// refreshes the avatar and fills in an empty name. The password hash of an
// existing account is never touched. user is populated with the stored row.
func (db *DB) UpsertUserByEmail(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, '', ?, ?, ?)
		 ON CONFLICT (email) DO UPDATE SET
		     avatar_url = excluded.avatar_url,
		     name = CASE WHEN users.name = '' THEN excluded.name ELSE users.name END,
		     updated_at = excluded.updated_at`,
		xid.New().String(),
		user.Name,
		user.Email,
		user.AvatarURL,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting user %s: %w", user.Email, err)
	}

	stored, err := db.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
