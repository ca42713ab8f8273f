package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/repository"
)

// =========================================================================
// FAKE REPOSITORIES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces. They
// follow the same contract as sqlstore (owner scoping, live-only reads,
// version-guarded writes), so the service tests exercise real behaviour
// without a database.

type fakeNoteRepo struct {
	mu     sync.Mutex
	notes  map[string]*model.Note
	nextID int

	// set to a non-nil error to simulate a database failure
	listErr error
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[string]*model.Note)}
}

func cloneNote(n *model.Note) *model.Note {
	c := *n
	c.Tags = append([]string{}, n.Tags...)
	return &c
}

func (f *fakeNoteRepo) Create(_ context.Context, note *model.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	note.ID = fmt.Sprintf("note-%03d", f.nextID)
	note.Version = 1
	note.Tags = model.NormalizeTags(note.Tags)
	f.notes[note.ID] = cloneNote(note)
	return nil
}

func (f *fakeNoteRepo) GetByID(_ context.Context, ownerID, id string) (*model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.notes[id]
	if !ok || n.OwnerID != ownerID || !n.IsLive() {
		return nil, apperror.NotFound("note", id)
	}
	return cloneNote(n), nil
}

func (f *fakeNoteRepo) List(_ context.Context, ownerID string, filter repository.NoteFilter) ([]model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.listErr != nil {
		return nil, f.listErr
	}

	out := make([]model.Note, 0)
	for _, n := range f.notes {
		if n.OwnerID != ownerID || !n.IsLive() {
			continue
		}
		if filter.Tag != "" && !n.HasTag(filter.Tag) {
			continue
		}
		if kw := strings.ToLower(filter.Keyword); kw != "" &&
			!strings.Contains(strings.ToLower(n.Title), kw) &&
			!strings.Contains(strings.ToLower(n.Content), kw) {
			continue
		}
		if !filter.CreatedFrom.IsZero() && n.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && !n.CreatedAt.Before(filter.CreatedTo) {
			continue
		}
		if filter.Flag != nil && !n.Flag(*filter.Flag) {
			continue
		}
		out = append(out, *cloneNote(n))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f *fakeNoteRepo) guard(ownerID, id string, version int64) (*model.Note, error) {
	n, ok := f.notes[id]
	if !ok || n.OwnerID != ownerID || !n.IsLive() {
		return nil, apperror.NotFound("note", id)
	}
	if n.Version != version {
		return nil, apperror.Conflict("note", id)
	}
	return n, nil
}

func (f *fakeNoteRepo) Update(_ context.Context, note *model.Note) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, err := f.guard(note.OwnerID, note.ID, note.Version)
	if err != nil {
		return err
	}
	note.Version++
	note.CreatedAt = stored.CreatedAt
	f.notes[note.ID] = cloneNote(note)
	return nil
}

func (f *fakeNoteRepo) SoftDelete(_ context.Context, ownerID, id string, version int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, err := f.guard(ownerID, id, version)
	if err != nil {
		return err
	}
	stored.DeletedAt = &at
	stored.UpdatedAt = at
	stored.Version++
	return nil
}

// raw returns the stored row, deleted or not, for assertions.
func (f *fakeNoteRepo) raw(id string) *model.Note {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.notes[id]; ok {
		return cloneNote(n)
	}
	return nil
}

// bumpVersion simulates a concurrent writer landing between read and write.
func (f *fakeNoteRepo) bumpVersion(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[id].Version++
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User // keyed by internal ID
	nextID int

	// set to a non-nil error to simulate a database failure
	createErr error
	lookupErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return apperror.DuplicateEmail(user.Email)
		}
		if u.Username == user.Username {
			return apperror.DuplicateUsername(user.Username)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%03d", f.nextID)
	copied := *user
	f.users[user.ID] = &copied
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool) (*model.User, bool) {
	for _, u := range f.users {
		if match(u) {
			c := *u
			return &c, true
		}
	}
	return nil, false
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if u, ok := f.find(func(u *model.User) bool { return u.ID == id }); ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if u, ok := f.find(func(u *model.User) bool { return u.Email == email }); ok {
		return u, nil
	}
	return nil, apperror.UserNotFound(email)
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if u, ok := f.find(func(u *model.User) bool { return u.Username == username }); ok {
		return u, nil
	}
	return nil, apperror.NotFound("user", username)
}

// quietLogger keeps test output clean.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock is a settable clock for deterministic timestamps.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
