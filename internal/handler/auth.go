package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/service"
)

// Authenticator is the subset of service.AuthService the handlers call.
type Authenticator interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler manages registration, login and the current user's profile.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister → create an account from username/email/password
//   - HandleLogin    → check credentials, return a bearer token
//   - HandleMe       → return the logged-in user's profile
//
// Tokens travel in the Authorization header; there are no cookies and
// therefore no server-side logout. A token stays valid until it expires.
type AuthHandler struct {
	auth   Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
// REQUEST BODY: {"username": "alice", "email": "a@x.com", "password": "secret1"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleLogin exchanges credentials for a bearer token.
//
// HTTP: POST /api/auth/login
// REQUEST BODY: {"email": "a@x.com", "password": "secret1"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		Token:     res.Token,
		UserID:    res.User.ID,
		Email:     res.User.Email,
		Username:  res.User.Username,
		ExpiresAt: res.ExpiresAt,
	})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), uid)
	if err != nil {
		h.logger.Warn("HandleMe: user lookup failed",
			slog.String("user_id", uid),
			slog.String("error", err.Error()),
		)
		// A valid token whose user no longer exists is still not a session.
		if errors.Is(err, apperror.ErrNotFound) {
			err = apperror.TokenInvalid()
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
