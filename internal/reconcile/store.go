package reconcile

import (
	"context"

	"github.com/MrSnakeDoc/marksync/internal/domain"
)

// RecordStore is the durable per-user bookmark collection the reconciler
// reads from and writes to.
type RecordStore interface {
	// LoadLiveRecords returns the user's records whose DeletedAt is unset,
	// ordered by id.
	LoadLiveRecords(ctx context.Context, userID int64) ([]domain.BookmarkRecord, error)

	// ApplyMerge persists updates, insertions and the journal entry as a
	// single atomic unit. On error nothing may be durable.
	ApplyMerge(ctx context.Context, userID int64, batch Batch) error
}

// Locker serializes merges of the same user.
type Locker interface {
	Lock(ctx context.Context, userID int64) (unlock func(), err error)
}

// Batch is everything one merge writes.
type Batch struct {
	// Updates are existing records with overwritten fields or a DeletedAt set.
	Updates []domain.BookmarkRecord
	// Inserts are new live records; their ID is assigned by the store.
	Inserts []domain.BookmarkRecord
	Journal domain.JournalEntry
}
