// Package reconcile merges a client-submitted bookmark snapshot into the
// user's cloud record set.
//
// A merge is deterministic and idempotent for unchanged inputs: resubmitting
// the same snapshot never re-adds or re-deletes anything, so a failed call
// can always be retried by the client.
package reconcile

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/logger"
)

// Result is the outcome of one merge.
type Result struct {
	Added     int
	Updated   int
	Deleted   int
	Conflicts int // no branch detects conflicts, always 0

	// Records is the user's live set re-read after the merge.
	Records []domain.BookmarkRecord
}

// Bookmarks projects the merged records to the wire shape.
func (r Result) Bookmarks() []domain.WireBookmark {
	return domain.WireSnapshot(r.Records)
}

// Reconciler runs merges against a RecordStore.
type Reconciler struct {
	store  RecordStore
	locker   Locker
	logger   logger.Logger
	now      func() time.Time
	lockWait time.Duration
}

// Option customizes a Reconciler.
type Option func(*Reconciler)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithLockWait bounds how long Merge waits for the per-user lock. Zero
// waits as long as the caller's context allows.
func WithLockWait(d time.Duration) Option {
	return func(r *Reconciler) { r.lockWait = d }
}

// New creates a reconciler. locker may be nil when the store already
// serializes writers of one user.
func New(store RecordStore, locker Locker, log logger.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:  store,
		locker: locker,
		logger: log,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// slot tracks one url of the live index during a merge.
type slot struct {
	rec      domain.BookmarkRecord
	baseline int64 // UpdatedAt in ms as loaded; comparisons never see this call's bumps
	inserted bool  // created by this merge, not yet persisted
	updated  bool
}

// Merge reconciles snapshot into the live records of userID.
//
// Entries without a url are skipped. Cloud records absent from the snapshot
// are left untouched. On any storage failure nothing durable changes and no
// journal entry is written.
func (r *Reconciler) Merge(ctx context.Context, userID int64, snapshot []domain.ClientBookmark) (Result, error) {
	if userID <= 0 {
		return Result{}, ErrInvalidUser
	}
	start := time.Now()

	if r.locker != nil {
		lockCtx := ctx
		if r.lockWait > 0 {
			var cancel context.CancelFunc
			lockCtx, cancel = context.WithTimeout(ctx, r.lockWait)
			defer cancel()
		}
		unlock, err := r.locker.Lock(lockCtx, userID)
		if err != nil {
			return Result{}, &StorageError{Op: "lock", Err: err}
		}
		defer unlock()
	}

	cloud, err := r.store.LoadLiveRecords(ctx, userID)
	if err != nil {
		r.logger.Error("failed to load live records",
			logger.Int64("user_id", userID), logger.Error(err))
		return Result{}, &StorageError{Op: "load", Err: err}
	}

	now := r.now().UTC().Truncate(time.Millisecond)
	batch, res := decide(userID, cloud, snapshot, now)

	if err := r.store.ApplyMerge(ctx, userID, batch); err != nil {
		r.logger.Error("failed to persist merge",
			logger.Int64("user_id", userID), logger.Error(err))
		return Result{}, &StorageError{Op: "apply", Err: err}
	}

	merged, err := r.store.LoadLiveRecords(ctx, userID)
	if err != nil {
		// The merge is durable at this point; a retry is a no-op.
		r.logger.Error("failed to reload merged records",
			logger.Int64("user_id", userID), logger.Error(err))
		return Result{}, &StorageError{Op: "reload", Err: err}
	}
	res.Records = merged

	r.logger.Info("merge completed",
		logger.Int64("user_id", userID),
		logger.Int("submitted", len(snapshot)),
		logger.Int("added", res.Added),
		logger.Int("updated", res.Updated),
		logger.Int("deleted", res.Deleted),
		logger.Int("live", len(merged)),
		logger.Duration("duration", time.Since(start)))

	return res, nil
}

// decide computes the merge decisions without touching storage.
func decide(userID int64, cloud []domain.BookmarkRecord, snapshot []domain.ClientBookmark, now time.Time) (Batch, Result) {
	live := make(map[string]*slot, len(cloud))
	existing := make([]*slot, 0, len(cloud))
	for _, rec := range cloud {
		if rec.URL == "" {
			continue
		}
		s := &slot{rec: rec, baseline: domain.ToMillis(rec.UpdatedAt)}
		live[rec.URL] = s
		existing = append(existing, s)
	}

	var (
		inserts []*slot
		deleted []domain.BookmarkRecord
	)

	for _, entry := range snapshot {
		if entry.URL == "" {
			continue
		}
		s := live[entry.URL]

		switch {
		case s != nil && entry.Deleted:
			delete(live, entry.URL)
			if s.inserted {
				// Added and removed within the same snapshot: nothing to persist.
				s.inserted = false
				continue
			}
			s.updated = false
			s.rec.MarkDeleted(now)
			deleted = append(deleted, s.rec)

		case s != nil && s.inserted:
			s.rec.ClientID = entry.ClientID
			s.rec.Title = entry.Title
			s.rec.FolderPath = entry.FolderPath

		case s != nil:
			if entry.ClientUpdatedAtMs <= s.baseline {
				continue
			}
			s.rec.ClientID = entry.ClientID
			s.rec.Title = entry.Title
			s.rec.FolderPath = entry.FolderPath
			s.rec.Touch(now)
			s.updated = true

		case !entry.Deleted:
			s = &slot{
				rec: domain.BookmarkRecord{
					UserID:     userID,
					ClientID:   entry.ClientID,
					URL:        entry.URL,
					Title:      entry.Title,
					FolderPath: entry.FolderPath,
					CreatedAt:  now,
					UpdatedAt:  now,
				},
				inserted: true,
			}
			live[entry.URL] = s
			inserts = append(inserts, s)
		}
	}

	var batch Batch
	for _, s := range existing {
		if s.updated {
			batch.Updates = append(batch.Updates, s.rec)
		}
	}
	res := Result{Updated: len(batch.Updates), Deleted: len(deleted)}
	batch.Updates = append(batch.Updates, deleted...)

	for _, s := range inserts {
		if s.inserted {
			batch.Inserts = append(batch.Inserts, s.rec)
		}
	}
	res.Added = len(batch.Inserts)

	batch.Journal = domain.JournalEntry{
		UserID:    userID,
		Action:    domain.SyncMerge,
		Added:     res.Added,
		Updated:   res.Updated,
		Deleted:   res.Deleted,
		Conflicts: res.Conflicts,
		CreatedAt: now,
	}
	return batch, res
}
