package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, email, password_hash, created_at, updated_at`

// CreateUser inserts a user, assigning an xid and timestamps when unset.
//
// The UNIQUE constraints on email and username are the final arbiter: the
// service checks first for a friendly message, but two concurrent
// registrations can both pass that check and only one INSERT wins.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.CreatedAt = user.CreatedAt.UTC().Truncate(time.Microsecond)
	if user.UpdatedAt.Before(user.CreatedAt) {
		user.UpdatedAt = user.CreatedAt
	}
	user.UpdatedAt = user.UpdatedAt.UTC().Truncate(time.Microsecond)

	_, err := db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		toMicros(user.CreatedAt),
		toMicros(user.UpdatedAt),
	)
	if err != nil {
		switch uniqueViolation(err) {
		case "users_email_key":
			return apperror.DuplicateEmail(user.Email)
		case "users_username_key":
			return apperror.DuplicateUsername(user.Username)
		}
		return fmt.Errorf("sqlstore: inserting user %s: %w", user.Username, err)
	}

	return nil
}

// GetUserByID retrieves a user by internal id.
// Returns apperror.ErrNotFound if no user exists with that id.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := db.getUser(ctx, "id", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", id)
	}
	return u, err
}

// GetUserByEmail looks a user up by email (stored lower-cased).
// Returns apperror.ErrUserNotFound when nobody registered that address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := db.getUser(ctx, "email", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.UserNotFound(email)
	}
	return u, err
}

// GetUserByUsername looks a user up by exact username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := db.getUser(ctx, "username", username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("user", username)
	}
	return u, err
}

// getUser runs the shared SELECT. column is one of the constants above,
// never caller input. sql.ErrNoRows is returned unwrapped for the callers
// to translate.
func (db *DB) getUser(ctx context.Context, column, value string) (*model.User, error) {
	var (
		u                    model.User
		createdAt, updatedAt int64
	)

	err := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`),
		value,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlstore: getting user by %s: %w", column, err)
	}

	u.CreatedAt = fromMicros(createdAt)
	u.UpdatedAt = fromMicros(updatedAt)
	return &u, nil
}
