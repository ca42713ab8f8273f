package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/apperror"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/model"
	"github.com/Nageshwar-Bedge/SmartNoteApp/internal/repository"
)

// compile-time check that *DB implements repository.NoteRepository
var _ repository.NoteRepository = (*DB)(nil)

const noteColumns = `id, owner_id, title, content, tags, reminder_at, pinned, favorite,
	archived, created_at, updated_at, deleted_at, version`

// flagColumns maps a flag to its column. Only these names are ever spliced
// into SQL text.
var flagColumns = map[model.Flag]string{
	model.FlagPinned:   "pinned",
	model.FlagFavorite: "favorite",
	model.FlagArchived: "archived",
}

// Create inserts a new note and its tag rows in one transaction.
//
// The store fills in what the caller left blank: an xid, timestamps when
// zero, version 1. CreatedAt/UpdatedAt are usually set by the service so the
// service clock wins.
func (db *DB) Create(ctx context.Context, note *model.Note) error {
	if note.ID == "" {
		note.ID = xid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	note.CreatedAt = note.CreatedAt.UTC().Truncate(time.Microsecond)
	if note.UpdatedAt.Before(note.CreatedAt) {
		note.UpdatedAt = note.CreatedAt
	}
	note.UpdatedAt = note.UpdatedAt.UTC().Truncate(time.Microsecond)
	note.Tags = model.NormalizeTags(note.Tags)
	note.Version = 1

	tags, err := json.Marshal(note.Tags)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding tags: %w", err)
	}

	return db.withTx(ctx, func(tx dbtx) error {
		_, err := tx.ExecContext(ctx, db.rebind(
			`INSERT INTO notes (`+noteColumns+`, title_lc, content_lc)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			note.ID,
			note.OwnerID,
			note.Title,
			note.Content,
			string(tags),
			nullMicros(note.Reminder),
			note.Pinned,
			note.Favorite,
			note.Archived,
			toMicros(note.CreatedAt),
			toMicros(note.UpdatedAt),
			nullMicros(note.DeletedAt),
			note.Version,
			strings.ToLower(note.Title),
			strings.ToLower(note.Content),
		)
		if err != nil {
			return fmt.Errorf("sqlstore: inserting note: %w", err)
		}
		return db.replaceTags(ctx, tx, note.ID, note.Tags)
	})
}

// GetByID returns the owner's live note with that id.
// Missing, soft-deleted and foreign notes all return apperror.ErrNotFound.
func (db *DB) GetByID(ctx context.Context, ownerID, id string) (*model.Note, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+noteColumns+` FROM notes
		 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL`),
		id, ownerID,
	)

	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqlstore: getting note %s: %w", id, err)
	}
	return note, nil
}

// List returns the owner's live notes matching filter, newest first.
//
// The WHERE clause is assembled from fixed fragments; every value travels as
// a bind parameter.
func (db *DB) List(ctx context.Context, ownerID string, filter repository.NoteFilter) ([]model.Note, error) {
	where := []string{"owner_id = ?", "deleted_at IS NULL"}
	args := []any{ownerID}

	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		where = append(where,
			"EXISTS (SELECT 1 FROM note_tags t WHERE t.note_id = notes.id AND t.tag = ?)")
		args = append(args, strings.ToLower(tag))
	}
	if filter.Keyword != "" {
		// title_lc/content_lc are folded with strings.ToLower on write, the
		// same folding applied to the keyword here, so the comparison is
		// Unicode-aware on both engines.
		pattern := "%" + escapeLike(strings.ToLower(filter.Keyword)) + "%"
		where = append(where,
			`(title_lc LIKE ? ESCAPE '\' OR content_lc LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMicros(filter.CreatedFrom))
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, toMicros(filter.CreatedTo))
	}
	if filter.Flag != nil {
		col, ok := flagColumns[*filter.Flag]
		if !ok {
			return nil, apperror.ValidationFailed("flag", fmt.Sprintf("unknown flag %q", *filter.Flag))
		}
		where = append(where, col+" = ?")
		args = append(args, true)
	}

	rows, err := db.conn.QueryContext(ctx, db.rebind(
		`SELECT `+noteColumns+` FROM notes
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY created_at DESC, id DESC`),
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing notes: %w", err)
	}
	defer rows.Close()

	notes := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning note row: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating notes: %w", err)
	}

	return notes, nil
}

// Update writes all mutable fields of note, guarded by its version.
//
// OPTIMISTIC CONCURRENCY:
// The UPDATE only matches if the row is still live, still owned by the
// caller and still at the version the caller read. When nothing matched, a
// second SELECT inside the same transaction tells "gone" (NotFound) apart
// from "someone else wrote first" (Conflict). On success note.Version is
// advanced to the stored value.
func (db *DB) Update(ctx context.Context, note *model.Note) error {
	note.Tags = model.NormalizeTags(note.Tags)
	note.UpdatedAt = note.UpdatedAt.UTC().Truncate(time.Microsecond)

	tags, err := json.Marshal(note.Tags)
	if err != nil {
		return fmt.Errorf("sqlstore: encoding tags: %w", err)
	}

	err = db.withTx(ctx, func(tx dbtx) error {
		res, err := tx.ExecContext(ctx, db.rebind(
			`UPDATE notes
			 SET title = ?, content = ?, title_lc = ?, content_lc = ?,
			     tags = ?, reminder_at = ?,
			     pinned = ?, favorite = ?, archived = ?,
			     updated_at = ?, version = version + 1
			 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL AND version = ?`),
			note.Title,
			note.Content,
			strings.ToLower(note.Title),
			strings.ToLower(note.Content),
			string(tags),
			nullMicros(note.Reminder),
			note.Pinned,
			note.Favorite,
			note.Archived,
			toMicros(note.UpdatedAt),
			note.ID,
			note.OwnerID,
			note.Version,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: updating note %s: %w", note.ID, err)
		}
		if err := db.checkGuardedWrite(ctx, tx, res, note.OwnerID, note.ID); err != nil {
			return err
		}
		return db.replaceTags(ctx, tx, note.ID, note.Tags)
	})
	if err != nil {
		return err
	}

	note.Version++
	return nil
}

// SoftDelete stamps deletedAt on a live note under the same version guard
// as Update. The row stays in the table; every read path filters it out.
func (db *DB) SoftDelete(ctx context.Context, ownerID, id string, version int64, at time.Time) error {
	return db.withTx(ctx, func(tx dbtx) error {
		res, err := tx.ExecContext(ctx, db.rebind(
			`UPDATE notes
			 SET deleted_at = ?, updated_at = ?, version = version + 1
			 WHERE id = ? AND owner_id = ? AND deleted_at IS NULL AND version = ?`),
			toMicros(at),
			toMicros(at),
			id,
			ownerID,
			version,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: soft-deleting note %s: %w", id, err)
		}
		return db.checkGuardedWrite(ctx, tx, res, ownerID, id)
	})
}

// checkGuardedWrite turns "0 rows affected" into NotFound or Conflict.
func (db *DB) checkGuardedWrite(ctx context.Context, tx dbtx, res sql.Result, ownerID, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	var deletedAt sql.NullInt64
	err = tx.QueryRowContext(ctx, db.rebind(
		`SELECT deleted_at FROM notes WHERE id = ? AND owner_id = ?`),
		id, ownerID,
	).Scan(&deletedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperror.NotFound("note", id)
	case err != nil:
		return fmt.Errorf("sqlstore: re-reading note %s: %w", id, err)
	case deletedAt.Valid:
		return apperror.NotFound("note", id)
	}
	return apperror.Conflict("note", id)
}

// replaceTags rewrites the lookup rows for a note: one lower-cased row per
// tag. NormalizeTags already removed case-insensitive duplicates, so the
// primary key cannot collide.
func (db *DB) replaceTags(ctx context.Context, tx dbtx, noteID string, tags []string) error {
	if _, err := tx.ExecContext(ctx, db.rebind(
		`DELETE FROM note_tags WHERE note_id = ?`), noteID,
	); err != nil {
		return fmt.Errorf("sqlstore: clearing tags of note %s: %w", noteID, err)
	}

	for _, tag := range tags {
		if _, err := tx.ExecContext(ctx, db.rebind(
			`INSERT INTO note_tags (note_id, tag) VALUES (?, ?)`),
			noteID, strings.ToLower(tag),
		); err != nil {
			return fmt.Errorf("sqlstore: inserting tag %q of note %s: %w", tag, noteID, err)
		}
	}
	return nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(s rowScanner) (*model.Note, error) {
	var (
		n                    model.Note
		tags                 string
		reminder, deletedAt  sql.NullInt64
		createdAt, updatedAt int64
	)

	if err := s.Scan(
		&n.ID, &n.OwnerID, &n.Title, &n.Content, &tags, &reminder,
		&n.Pinned, &n.Favorite, &n.Archived,
		&createdAt, &updatedAt, &deletedAt, &n.Version,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of note %s: %w", n.ID, err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.Reminder = timePtr(reminder)
	n.DeletedAt = timePtr(deletedAt)
	n.CreatedAt = fromMicros(createdAt)
	n.UpdatedAt = fromMicros(updatedAt)

	return &n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so the keyword matches literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
