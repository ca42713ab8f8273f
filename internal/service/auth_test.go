package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/auth"
)

// =========================================================================
// HELPERS
// =========================================================================

const testJWTSecret = "service-test-secret-at-least-32-bytes"

// newTestAuthService wires a real TokenService and a cheap bcrypt cost over
// the in-memory user repo.
func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService(testJWTSecret, time.Hour)
	require.NoError(t, err)

	users := newFakeUserRepo()
	svc := NewAuthService(users, tokens, auth.NewPasswordServiceWithCost(bcrypt.MinCost), quietLogger())
	return svc, users, tokens
}

func mustRegister(t *testing.T, svc *AuthService, username, email, password string) {
	t.Helper()
	_, err := svc.Register(context.Background(), username, email, password)
	require.NoError(t, err)
}

// =========================================================================
// REGISTER TESTS
// =========================================================================

func TestRegister_Success(t *testing.T) {
	svc, users, _ := newTestAuthService(t)

	user, err := svc.Register(context.Background(), " alice ", "Alice@Example.COM", "secret1")
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.CreatedAt.IsZero())

	stored, err := users.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", stored.PasswordHash, "plaintext must never be stored")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("secret1")))
}

func TestRegister_Duplicates(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	mustRegister(t, svc, "alice", "a@x.com", "secret1")

	tests := []struct {
		name     string
		username string
		email    string
		want     error
	}{
		{"same email", "alice2", "a@x.com", apperror.ErrDuplicateEmail},
		{"same email different case", "alice2", "A@X.COM", apperror.ErrDuplicateEmail},
		{"same username", "alice", "b@x.com", apperror.ErrDuplicateUsername},
		{"both taken reports email", "alice", "a@x.com", apperror.ErrDuplicateEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.email, "secret1")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRegister_StoreRaceIsStillDuplicate(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	users.createErr = apperror.DuplicateUsername("alice")

	_, err := svc.Register(context.Background(), "alice", "a@x.com", "secret1")
	assert.ErrorIs(t, err, apperror.ErrDuplicateUsername)
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
		field    string
	}{
		{"username too short", "al", "a@x.com", "secret1", "username"},
		{"username too long", strings.Repeat("u", MaxUsernameLength+1), "a@x.com", "secret1", "username"},
		{"blank username", "   ", "a@x.com", "secret1", "username"},
		{"email without at", "alice", "alice.example.com", "secret1", "email"},
		{"email with two ats", "alice", "a@b@c", "secret1", "email"},
		{"email with space", "alice", "a b@x.com", "secret1", "email"},
		{"empty email", "alice", "", "secret1", "email"},
		{"password too short", "alice", "a@x.com", "12345", "password"},
		{"password too long", "alice", "a@x.com", strings.Repeat("p", auth.MaxPasswordBytes+1), "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, users, _ := newTestAuthService(t)

			_, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)

			require.ErrorIs(t, err, apperror.ErrValidation)
			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.field, appErr.Field)
			assert.Empty(t, users.users, "nothing stored on validation failure")
		})
	}
}

func TestRegister_LookupFailureIsWrapped(t *testing.T) {
	svc, users, _ := newTestAuthService(t)
	dbErr := errors.New("connection reset")
	users.lookupErr = dbErr

	_, err := svc.Register(context.Background(), "alice", "a@x.com", "secret1")
	assert.ErrorIs(t, err, dbErr)
}

// =========================================================================
// LOGIN TESTS
// =========================================================================

func TestLogin_Success(t *testing.T) {
	svc, _, tokens := newTestAuthService(t)
	mustRegister(t, svc, "alice", "a@x.com", "secret1")

	res, err := svc.Login(context.Background(), " A@X.com ", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "alice", res.User.Username)
	assert.NotEmpty(t, res.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), res.ExpiresAt, 5*time.Second)

	userID, err := tokens.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, userID, "token subject is the internal user id")
}

func TestLogin_Failures(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	mustRegister(t, svc, "alice", "a@x.com", "secret1")

	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"unknown email", "nobody@x.com", "secret1", apperror.ErrUserNotFound},
		{"wrong password", "a@x.com", "secret2", apperror.ErrInvalidCredentials},
		{"password case matters", "a@x.com", "SECRET1", apperror.ErrInvalidCredentials},
		{"empty email", "", "secret1", apperror.ErrInvalidCredentials},
		{"empty password", "a@x.com", "", apperror.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Login(context.Background(), tt.email, tt.password)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// =========================================================================
// PROFILE TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	svc, _, _ := newTestAuthService(t)
	user, err := svc.Register(context.Background(), "alice", "a@x.com", "secret1")
	require.NoError(t, err)

	got, err := svc.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got.Email)

	_, err = svc.GetUserByID(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.GetUserByID(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrTokenInvalid)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "bob@example.com", NormalizeEmail("  Bob@Example.com\n"))
}
