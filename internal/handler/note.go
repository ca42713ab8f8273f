package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/auth"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/service"
)

// NoteManager is the subset of service.NoteService the handlers call.
// Taking an interface lets handler tests substitute a fake.
type NoteManager interface {
	Create(ctx context.Context, callerID string, in service.NoteInput) (*model.Note, error)
	Get(ctx context.Context, callerID, id string) (*model.Note, error)
	List(ctx context.Context, callerID string) ([]model.Note, error)
	Update(ctx context.Context, callerID, id string, patch service.NotePatch) (*model.Note, error)
	Delete(ctx context.Context, callerID, id string) error
	Toggle(ctx context.Context, callerID, id string, flag model.Flag) (*model.Note, error)
	ListByTag(ctx context.Context, callerID, tag string) ([]model.Note, error)
	ListByDate(ctx context.Context, callerID, date string) ([]model.Note, error)
	ListByFlag(ctx context.Context, callerID string, flag model.Flag) ([]model.Note, error)
	Search(ctx context.Context, callerID, keyword string) ([]model.Note, error)
}

// NoteHandler serves the /api/notes routes.
//
// Every route sits behind auth.RequireAuth, so the caller id is always in
// the request context. Handlers only parse input, call the NoteManager and
// map the result; ownership rules live in the service.
type NoteHandler struct {
	notes  NoteManager
	logger *slog.Logger
}

// NewNoteHandler creates a NoteHandler.
func NewNoteHandler(notes NoteManager, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, logger: logger}
}

// callerID reads the authenticated user id. A missing id means the route was
// mounted without RequireAuth; answer 401 rather than act as nobody.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.TokenInvalid())
	}
	return id, ok
}

// HandleCreate creates a note.
//
// HTTP: POST /api/notes
// REQUEST BODY: {"title": "...", "content": "...", "tags": ["a"], "reminder": "2024-05-01T09:00:00Z"}
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}

	var in service.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	note, err := h.notes.Create(r.Context(), uid, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// HandleList returns the caller's live notes, newest first.
//
// HTTP: GET /api/notes
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	h.writeNotes(w, func() ([]model.Note, error) { return h.notes.List(r.Context(), uid) })
}

// HandleGet returns one note.
//
// HTTP: GET /api/notes/{id}
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}

	note, err := h.notes.Get(r.Context(), uid, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// HandleUpdate applies a partial update.
//
// HTTP: PUT /api/notes/{id}
// Fields left out of the body are unchanged; "reminder": null clears it.
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}

	var patch service.NotePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	note, err := h.notes.Update(r.Context(), uid, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// HandleDelete soft-deletes a note.
//
// HTTP: DELETE /api/notes/{id}
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}

	if err := h.notes.Delete(r.Context(), uid, r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggle returns a handler that inverts one flag.
//
// HTTP: PUT /api/notes/{id}/pin, /favorite, /archive
func (h *NoteHandler) HandleToggle(flag model.Flag) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := callerID(w, r)
		if !ok {
			return
		}

		note, err := h.notes.Toggle(r.Context(), uid, r.PathValue("id"), flag)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, note)
	}
}

// HandleListByTag lists notes carrying a tag.
//
// HTTP: GET /api/notes/tag/{tag}
func (h *NoteHandler) HandleListByTag(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	h.writeNotes(w, func() ([]model.Note, error) {
		return h.notes.ListByTag(r.Context(), uid, r.PathValue("tag"))
	})
}

// HandleListByDate lists notes created on a calendar day.
//
// HTTP: GET /api/notes/date/{date}
func (h *NoteHandler) HandleListByDate(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	h.writeNotes(w, func() ([]model.Note, error) {
		return h.notes.ListByDate(r.Context(), uid, r.PathValue("date"))
	})
}

// HandleListByFlag returns a handler listing notes with one flag set.
//
// HTTP: GET /api/notes/pinned, /favorites, /archived
func (h *NoteHandler) HandleListByFlag(flag model.Flag) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := callerID(w, r)
		if !ok {
			return
		}
		h.writeNotes(w, func() ([]model.Note, error) {
			return h.notes.ListByFlag(r.Context(), uid, flag)
		})
	}
}

// HandleSearch matches keyword against title, content and tags.
//
// HTTP: GET /api/notes/search?keyword=...
func (h *NoteHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	uid, ok := callerID(w, r)
	if !ok {
		return
	}
	keyword := r.URL.Query().Get("keyword")
	h.writeNotes(w, func() ([]model.Note, error) {
		return h.notes.Search(r.Context(), uid, keyword)
	})
}

// writeNotes runs a list query and writes the result, always as a JSON
// array (never null).
func (h *NoteHandler) writeNotes(w http.ResponseWriter, query func() ([]model.Note, error)) {
	notes, err := query()
	if err != nil {
		writeError(w, err)
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}
