package domain

import "time"

// SyncAction names the kind of sync that produced a journal entry.
type SyncAction string

const (
	SyncUpload   SyncAction = "upload"
	SyncDownload SyncAction = "download"
	SyncMerge    SyncAction = "merge"
)

// JournalEntry summarizes one reconciliation call.
// Entries are append-only and never mutated after creation.
type JournalEntry struct {
	ID        int64
	UserID    int64
	Action    SyncAction
	Added     int
	Updated   int
	Deleted   int
	Conflicts int
	CreatedAt time.Time
}
