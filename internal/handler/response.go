package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
// CONSISTENT ERROR FORMAT:
// Every error response from our API has the same shape:
//   {"error": "not_found", "message": "note not found with id abc123"}
//
// Validation errors also name the offending field:
//   {"error": "validation_error", "message": "...", "field": "title"}

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
)

// maxBodyBytes caps request bodies. A note's content limit is 100k
// characters; four bytes per rune plus JSON overhead fits comfortably.
const maxBodyBytes = 1 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Set for validation errors
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE the body. Once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorKind is one row of the error → HTTP mapping.
type errorKind struct {
	target error
	status int
	kind   string
}

// errorKinds is checked in order with errors.Is. A *auth.TokenError matches
// ErrTokenInvalid through its Unwrap.
var errorKinds = []errorKind{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrDuplicateEmail, http.StatusBadRequest, "duplicate_email"},
	{apperror.ErrDuplicateUsername, http.StatusBadRequest, "duplicate_username"},
	{apperror.ErrUserNotFound, http.StatusUnauthorized, "user_not_found"},
	{apperror.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{apperror.ErrTokenInvalid, http.StatusUnauthorized, "unauthorized"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// ERROR MAPPING:
// The service layer returns apperror kinds and knows nothing about HTTP.
// This is the one place where kinds turn into status codes.
//
// errors.Is() walks the whole chain, so a kind wrapped by fmt.Errorf("%w")
// any number of times still maps correctly.
func writeError(w http.ResponseWriter, err error) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.target) {
			continue
		}
		resp := ErrorResponse{Error: k.kind, Message: err.Error()}
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			resp.Message = appErr.Message
			resp.Field = appErr.Field
		}
		if k.target == apperror.ErrTokenInvalid {
			resp.Message = "valid authentication required"
		}
		writeJSON(w, k.status, resp)
		return
	}

	// Unknown error: return a generic 500.
	// NEVER expose internal error details; they may contain SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON object from the request body into dst.
// Every failure is an apperror.ErrValidation so it answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is required")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body",
				fmt.Sprintf("request body must be %d bytes or fewer", maxErr.Limit))
		default:
			return apperror.ValidationFailed("body", "malformed JSON: "+err.Error())
		}
	}
	if dec.More() {
		return apperror.ValidationFailed("body", "request body must be a single JSON object")
	}
	return nil
}
