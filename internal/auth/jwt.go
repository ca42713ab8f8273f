// Package auth provides bearer-token issuance/validation, password hashing
// and the HTTP middleware that gates the notes API.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. POST /api/auth/login with email + password
//  2. AuthService verifies the bcrypt hash and asks TokenService for a JWT
//  3. The client sends the JWT back on every call as "Authorization: Bearer <jwt>"
//  4. RequireAuth validates it and stores the user id in the request context
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<userID>","iat":...,"exp":...,"iss":"smartnotes","jti":"<uuid>"}
//	- Signature: HMAC-SHA256(header+"."+payload, secret)
//
// The server verifies the signature with the secret alone, no DB lookup.
// There is no revocation list: a token stays valid until "exp" passes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
)

const (
	// Issuer is written into "iss" and required on validation, so tokens
	// minted by another service sharing the secret are rejected.
	Issuer = "smartnotes"

	// DefaultTokenTTL is the validity window when none is configured.
	DefaultTokenTTL = 24 * time.Hour

	// MinSecretLength is 32 bytes, i.e. a 256-bit HMAC key.
	MinSecretLength = 32
)

// Reasons a token can fail validation. They are reachable through
// errors.Is on the *TokenError returned by Validate.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenSignature = errors.New("token signature mismatch")
	ErrTokenExpired   = errors.New("token expired")
)

// TokenError is the single failure type of Validate. It matches both its
// Reason and apperror.ErrTokenInvalid, so transport code can treat every
// failure the same while logs and tests can still tell them apart.
type TokenError struct {
	Reason error
	cause  error
}

func (e *TokenError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("auth: %v: %v", e.Reason, e.cause)
	}
	return fmt.Sprintf("auth: %v", e.Reason)
}

func (e *TokenError) Unwrap() []error {
	return []error{e.Reason, apperror.ErrTokenInvalid}
}

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret used to sign and verify tokens. The secret is
// injected at construction and lives for the whole process; every token it
// issued validates for as long as the process keeps the same secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService.
// Generate one with: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d bytes", MinSecretLength)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the validity window applied by Generate.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims embeds jwt.RegisteredClaims; "sub" carries the internal user id.
type claims struct {
	jwt.RegisteredClaims
}

// Generate creates and signs a token for userID valid for the configured TTL.
func (s *TokenService) Generate(userID string) (string, error) {
	token, _, err := s.Issue(userID)
	return token, err
}

// Issue is Generate that also reports the instant the token expires, so a
// login response can tell the client when to re-authenticate.
func (s *TokenService) Issue(userID string) (string, time.Time, error) {
	return s.sign(userID, s.ttl)
}

// GenerateWithDuration creates a token with a custom lifetime.
// Tests use a negative duration to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	token, _, err := s.sign(userID, d)
	return token, err
}

func (s *TokenService) sign(userID string, d time.Duration) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("auth: cannot issue a token without a user id")
	}
	now := s.now()
	exp := jwt.NewNumericDate(now.Add(d))

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: exp,
			Issuer:    Issuer,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: signing token: %w", err)
	}

	// NumericDate truncates to whole seconds; report what the token carries.
	return signed, exp.Time.UTC(), nil
}

// Validate parses and verifies a JWT string and returns its subject.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Algorithm is HS256 (prevents "alg: none" and algorithm confusion)
//   - Signature matches the secret
//   - Issuer is "smartnotes"
//   - "exp" is present and in the future
//
// Every failure is a *TokenError; nothing here panics.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", classify(err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", &TokenError{Reason: ErrTokenMalformed}
	}
	if c.Subject == "" {
		return "", &TokenError{Reason: ErrTokenMalformed, cause: errors.New("token has no subject")}
	}

	return c.Subject, nil
}

// classify maps jwt library errors onto the three reasons we expose.
func classify(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Reason: ErrTokenExpired}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return &TokenError{Reason: ErrTokenSignature}
	default:
		return &TokenError{Reason: ErrTokenMalformed, cause: err}
	}
}
