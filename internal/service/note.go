// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces ownership, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never a concrete database, so the
// tests in this package run against in-memory fakes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/repository"
)

// Validation limits for note input, counted in characters (runes).
const (
	MaxTitleLength   = 200
	MaxContentLength = 100000
	MaxTags          = 50
	MaxTagLength     = 50
)

// NoteInput is the payload of Create.
type NoteInput struct {
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	Tags     []string   `json:"tags"`
	Reminder *time.Time `json:"reminder"`
}

// NotePatch is the payload of Update. Each field is absent (untouched),
// a value (replaces) or null. Null clears Reminder; for the other fields,
// which have no "empty" state distinct from a value, null is ignored.
// Tags, when present, replace the whole set.
type NotePatch struct {
	Title    model.Optional[string]    `json:"title"`
	Content  model.Optional[string]    `json:"content"`
	Tags     model.Optional[[]string]  `json:"tags"`
	Reminder model.Optional[time.Time] `json:"reminder"`
}

// NoteService is the note manager: every operation is scoped to the caller
// id the auth middleware resolved from the bearer token.
//
// OWNERSHIP:
// Every lookup goes through repo.GetByID(ctx, callerID, id), which only
// matches live notes owned by the caller. A note that does not exist, was
// soft-deleted, or belongs to someone else is the same NotFound.
//
// CONCURRENCY:
// Mutations are read-modify-write guarded by the note's version. If another
// request wrote in between, the store answers apperror.ErrConflict and the
// call fails without retrying; the client re-reads and decides.
type NoteService struct {
	repo   repository.NoteRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewNoteService creates a NoteService.
func NewNoteService(repo repository.NoteRepository, logger *slog.Logger) *NoteService {
	return &NoteService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Create validates input and stores a new live note owned by callerID.
func (s *NoteService) Create(ctx context.Context, callerID string, in NoteInput) (*model.Note, error) {
	tags := model.NormalizeTags(in.Tags)
	if err := validateNote(in.Title, in.Content, tags); err != nil {
		return nil, err
	}

	now := s.stamp()
	note := &model.Note{
		OwnerID:   callerID,
		Title:     in.Title,
		Content:   in.Content,
		Tags:      tags,
		Reminder:  normalizeReminder(in.Reminder),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		s.logger.Error("failed to create note",
			slog.String("owner_id", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/note: creating note: %w", err)
	}

	s.logger.Info("note created",
		slog.String("note_id", note.ID),
		slog.String("owner_id", callerID),
		slog.Int("tags", len(note.Tags)),
	)
	return note, nil
}

// Get returns one of the caller's live notes.
func (s *NoteService) Get(ctx context.Context, callerID, id string) (*model.Note, error) {
	note, err := s.repo.GetByID(ctx, callerID, id)
	if err != nil {
		return nil, s.wrap("getting note", id, err)
	}
	return note, nil
}

// List returns all of the caller's live notes, newest first.
func (s *NoteService) List(ctx context.Context, callerID string) ([]model.Note, error) {
	return s.list(ctx, callerID, repository.NoteFilter{}, "listing notes")
}

// Update applies a partial update. Fields absent from patch keep their
// stored value; owner, createdAt, flags and deletedAt are never touched.
func (s *NoteService) Update(ctx context.Context, callerID, id string, patch NotePatch) (*model.Note, error) {
	note, err := s.repo.GetByID(ctx, callerID, id)
	if err != nil {
		return nil, s.wrap("loading note for update", id, err)
	}

	if patch.Title.Present() {
		note.Title = patch.Title.Value
	}
	if patch.Content.Present() {
		note.Content = patch.Content.Value
	}
	if patch.Tags.Present() {
		note.Tags = model.NormalizeTags(patch.Tags.Value)
	}
	switch {
	case patch.Reminder.Present():
		note.Reminder = normalizeReminder(&patch.Reminder.Value)
	case patch.Reminder.Set && patch.Reminder.Null:
		note.Reminder = nil
	}

	if err := validateNote(note.Title, note.Content, note.Tags); err != nil {
		return nil, err
	}

	note.UpdatedAt = s.advance(note.UpdatedAt)
	if err := s.repo.Update(ctx, note); err != nil {
		return nil, s.wrap("updating note", id, err)
	}

	s.logger.Info("note updated",
		slog.String("note_id", note.ID),
		slog.Int64("version", note.Version),
	)
	return note, nil
}

// Delete soft-deletes one of the caller's notes. The note stays in storage
// with deletedAt set and vanishes from every read; deleting it again is
// NotFound.
func (s *NoteService) Delete(ctx context.Context, callerID, id string) error {
	note, err := s.repo.GetByID(ctx, callerID, id)
	if err != nil {
		return s.wrap("loading note for delete", id, err)
	}

	at := s.advance(note.UpdatedAt)
	if err := s.repo.SoftDelete(ctx, callerID, id, note.Version, at); err != nil {
		return s.wrap("deleting note", id, err)
	}

	s.logger.Info("note deleted", slog.String("note_id", id))
	return nil
}

// Toggle inverts exactly one flag of one of the caller's notes.
func (s *NoteService) Toggle(ctx context.Context, callerID, id string, flag model.Flag) (*model.Note, error) {
	flag, err := model.ParseFlag(string(flag))
	if err != nil {
		return nil, apperror.ValidationFailed("flag", err.Error())
	}

	note, err := s.repo.GetByID(ctx, callerID, id)
	if err != nil {
		return nil, s.wrap("loading note for toggle", id, err)
	}

	note.Toggle(flag)
	note.UpdatedAt = s.advance(note.UpdatedAt)
	if err := s.repo.Update(ctx, note); err != nil {
		return nil, s.wrap("toggling note", id, err)
	}

	s.logger.Info("note flag toggled",
		slog.String("note_id", id),
		slog.String("flag", string(flag)),
		slog.Bool("value", note.Flag(flag)),
	)
	return note, nil
}

// ListByTag returns the caller's live notes carrying tag, compared
// case-insensitively.
func (s *NoteService) ListByTag(ctx context.Context, callerID, tag string) ([]model.Note, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, apperror.ValidationFailed("tag", "tag is required")
	}
	return s.list(ctx, callerID, repository.NoteFilter{Tag: tag}, "listing notes by tag")
}

// ListByDate returns the caller's live notes created on the calendar day
// named by date. See ParseDay for the accepted formats.
func (s *NoteService) ListByDate(ctx context.Context, callerID, date string) ([]model.Note, error) {
	day, err := ParseDay(date)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, callerID, repository.NoteFilter{
		CreatedFrom: day,
		CreatedTo:   day.AddDate(0, 0, 1),
	}, "listing notes by date")
}

// ListByFlag returns the caller's live notes with flag set.
func (s *NoteService) ListByFlag(ctx context.Context, callerID string, flag model.Flag) ([]model.Note, error) {
	f, err := model.ParseFlag(string(flag))
	if err != nil {
		return nil, apperror.ValidationFailed("flag", err.Error())
	}
	return s.list(ctx, callerID, repository.NoteFilter{Flag: &f}, "listing notes by flag")
}

// Search returns the union of the caller's notes whose title or content
// contains keyword and those tagged keyword, all case-insensitive, without
// duplicates and newest first. A blank keyword matches every live note.
// The text match uses the keyword as given, spaces included; only the tag
// comparison ignores surrounding whitespace.
func (s *NoteService) Search(ctx context.Context, callerID, keyword string) ([]model.Note, error) {
	if strings.TrimSpace(keyword) == "" {
		return s.List(ctx, callerID)
	}

	byText, err := s.list(ctx, callerID, repository.NoteFilter{Keyword: keyword}, "searching notes")
	if err != nil {
		return nil, err
	}
	byTag, err := s.list(ctx, callerID, repository.NoteFilter{Tag: strings.TrimSpace(keyword)}, "searching notes by tag")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(byText)+len(byTag))
	merged := make([]model.Note, 0, len(byText)+len(byTag))
	for _, batch := range [][]model.Note{byText, byTag} {
		for _, n := range batch {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			merged = append(merged, n)
		}
	}
	sortNewestFirst(merged)

	return merged, nil
}

func (s *NoteService) list(ctx context.Context, callerID string, f repository.NoteFilter, op string) ([]model.Note, error) {
	notes, err := s.repo.List(ctx, callerID, f)
	if err != nil {
		s.logger.Error("failed "+op,
			slog.String("owner_id", callerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/note: %s: %w", op, err)
	}
	return notes, nil
}

// wrap passes domain errors through untouched so handlers can map them, and
// logs and wraps anything else.
func (s *NoteService) wrap(op, id string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	s.logger.Error("failed "+op,
		slog.String("note_id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("service/note: %s %s: %w", op, id, err)
}

// stamp reads the clock at the precision the store keeps.
func (s *NoteService) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// advance returns the next updatedAt: now, or one microsecond past prev if
// the clock has not moved past it. updatedAt therefore strictly increases
// on every accepted mutation, even under a coarse or skewed clock.
func (s *NoteService) advance(prev time.Time) time.Time {
	next := s.stamp()
	if !next.After(prev) {
		next = prev.Add(time.Microsecond)
	}
	return next
}

func validateNote(title, content string, tags []string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return apperror.ValidationFailed("content",
			fmt.Sprintf("content must be %d characters or less", MaxContentLength))
	}
	if len(tags) > MaxTags {
		return apperror.ValidationFailed("tags",
			fmt.Sprintf("a note can have at most %d tags", MaxTags))
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > MaxTagLength {
			return apperror.ValidationFailed("tags",
				fmt.Sprintf("tag %q is longer than %d characters", t, MaxTagLength))
		}
	}
	return nil
}

func normalizeReminder(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	r := t.UTC().Truncate(time.Microsecond)
	return &r
}

func sortNewestFirst(notes []model.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
}

// dayLayouts are tried in order by ParseDay. RFC 3339 covers offsets and
// the trailing "Z"; the others are local date-times with no zone.
var dayLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseDay parses a date or date-time and returns midnight UTC of the
// calendar date as written. "2024-05-01", "2024-05-01T23:30" and
// "2024-05-01T23:30:00+05:00" all name 2024-05-01. Anything else is an
// apperror.ErrValidation.
func ParseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dayLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, apperror.ValidationFailed("date",
		fmt.Sprintf("invalid date %q: use YYYY-MM-DD or an ISO-8601 date-time", s))
}
