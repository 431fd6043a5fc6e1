package domain

import (
	"strconv"
	"time"
)

// BookmarkRecord is the server-owned copy of one bookmark of one user.
//
// Records are created, mutated and soft-deleted only by the reconciler.
// They are never physically erased by a sync.
type BookmarkRecord struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is assigned by the store on insertion.
	ID int64

	// UserID is the owner. Records are never shared between users.
	UserID int64

	// ─────────────────────────────
	// Content (overwritten by newer client edits)
	// ─────────────────────────────

	// ClientID is the browser-side identifier, may be empty.
	ClientID string

	// URL is the dedup key inside a user's live set.
	// Compared byte for byte, never normalized.
	URL string

	Title string

	// FolderPath is an opaque slash-delimited path, not parsed.
	FolderPath string

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is set once at insertion.
	CreatedAt time.Time

	// UpdatedAt is bumped on every mutating merge decision.
	UpdatedAt time.Time

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	// DeletedAt is nil while the record is live.
	DeletedAt *time.Time
}

// IsLive reports whether the record has not been soft-deleted.
func (b *BookmarkRecord) IsLive() bool {
	return b.DeletedAt == nil
}

// MarkDeleted soft-deletes the record at the given instant.
func (b *BookmarkRecord) MarkDeleted(at time.Time) {
	ts := at
	b.DeletedAt = &ts
	b.Touch(at)
}

// Touch bumps UpdatedAt, never moving it backwards.
func (b *BookmarkRecord) Touch(at time.Time) {
	if at.After(b.UpdatedAt) {
		b.UpdatedAt = at
	}
}

// Wire projects the record to the shape exchanged with clients.
// The identifier prefers the client id and falls back to the server id.
func (b *BookmarkRecord) Wire() WireBookmark {
	id := b.ClientID
	if id == "" {
		id = strconv.FormatInt(b.ID, 10)
	}
	added := ToMillis(b.CreatedAt)
	return WireBookmark{
		ID:         &id,
		URL:        strPtr(b.URL),
		Title:      strPtr(b.Title),
		FolderPath: strPtr(b.FolderPath),
		DateAdded:  &added,
	}
}

// ToMillis converts t to epoch milliseconds. The zero time maps to 0.
func ToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// FromMillis converts epoch milliseconds to a UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func strPtr(s string) *string { return &s }
