// Package repository defines the storage contracts the service layer depends on.
//
// WHY INTERFACES HERE?
// Services accept these interfaces, not a concrete database type. Production
// wires in sqlstore.DB (SQLite or PostgreSQL); service tests wire in small
// in-memory fakes. Neither side knows about the other.
package repository

import (
	"context"
	"time"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
)

// NoteFilter narrows a List call. Zero-valued fields are ignored; all set
// conditions are AND-ed. Soft-deleted notes are never returned.
type NoteFilter struct {
	// Tag matches notes carrying this tag, case-insensitively.
	Tag string
	// Keyword matches a case-insensitive substring of title or content.
	Keyword string
	// CreatedFrom / CreatedTo bound createdAt as a half-open range [from, to).
	CreatedFrom time.Time
	CreatedTo   time.Time
	// Flag, when non-nil, keeps only notes with that flag set.
	Flag *model.Flag
}

// NoteRepository persists notes. Every read is scoped to one owner and sees
// live notes only, so a foreign note and a missing note look the same.
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	GetByID(ctx context.Context, ownerID, id string) (*model.Note, error)
	// List returns matches ordered by createdAt descending, then id.
	List(ctx context.Context, ownerID string, filter NoteFilter) ([]model.Note, error)
	// Update writes every mutable field of note if the stored version still
	// equals note.Version, then increments note.Version. A stale version is
	// apperror.ErrConflict; a missing or deleted note is apperror.ErrNotFound.
	Update(ctx context.Context, note *model.Note) error
	// SoftDelete stamps deletedAt under the same version check as Update.
	SoftDelete(ctx context.Context, ownerID, id string, version int64, at time.Time) error
}

// UserRepository persists user accounts.
type UserRepository interface {
	// CreateUser inserts a new user. A taken email or username is reported as
	// apperror.ErrDuplicateEmail / apperror.ErrDuplicateUsername.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
}
