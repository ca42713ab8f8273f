package model

import (
	"fmt"
	"strings"
	"time"
)

// Note is a short text record owned by exactly one user.
//
// LIFECYCLE:
// A note is live while DeletedAt is nil. Soft delete sets DeletedAt and the
// note disappears from every owner-facing read; nothing ever clears it again.
//
// Version is the optimistic-concurrency counter. Stores only accept a write
// whose Version matches the stored one, then bump it.
type Note struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"ownerId"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Tags      []string   `json:"tags"`
	Reminder  *time.Time `json:"reminder,omitempty"`
	Pinned    bool       `json:"pinned"`
	Favorite  bool       `json:"favorite"`
	Archived  bool       `json:"archived"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	Version   int64      `json:"version"`
}

// IsLive reports whether the note has not been soft-deleted.
func (n *Note) IsLive() bool {
	return n.DeletedAt == nil
}

// HasTag reports whether tag is in the note's tag set, ignoring case.
func (n *Note) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range n.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

// Flag returns the current value of the named boolean attribute.
func (n *Note) Flag(f Flag) bool {
	switch f {
	case FlagPinned:
		return n.Pinned
	case FlagFavorite:
		return n.Favorite
	case FlagArchived:
		return n.Archived
	}
	return false
}

// Toggle inverts exactly the named flag.
func (n *Note) Toggle(f Flag) {
	switch f {
	case FlagPinned:
		n.Pinned = !n.Pinned
	case FlagFavorite:
		n.Favorite = !n.Favorite
	case FlagArchived:
		n.Archived = !n.Archived
	}
}

// Flag names one of the independent boolean attributes of a Note.
type Flag string

const (
	FlagPinned   Flag = "pinned"
	FlagFavorite Flag = "favorite"
	FlagArchived Flag = "archived"
)

// ParseFlag accepts the flag names plus the route spellings used by the
// HTTP layer ("pin", "archive", "favorites").
func ParseFlag(s string) (Flag, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pinned", "pin":
		return FlagPinned, nil
	case "favorite", "favorites":
		return FlagFavorite, nil
	case "archived", "archive":
		return FlagArchived, nil
	}
	return "", fmt.Errorf("unknown flag %q", s)
}

// NormalizeTags turns user input into a tag set: whitespace trimmed, empty
// entries dropped, duplicates (compared case-insensitively) removed keeping
// the first spelling. The result is never nil so it encodes as [] not null.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
