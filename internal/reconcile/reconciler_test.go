package reconcile_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/lock"
	"github.com/MrSnakeDoc/marksync/internal/logger"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
	"github.com/MrSnakeDoc/marksync/internal/store/memory"
)

const userID = int64(7)

// clock returns a controllable time source starting at base.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(base time.Time) *clock { return &clock{now: base} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newReconciler(store *memory.Store, c *clock) *reconcile.Reconciler {
	return reconcile.New(store, lock.NewLocal(), logger.Nop(), reconcile.WithClock(c.Now))
}

func live(url, title string, ms int64) domain.ClientBookmark {
	return domain.ClientBookmark{URL: url, Title: title, ClientUpdatedAtMs: ms}
}

func deleted(url string) domain.ClientBookmark {
	return domain.ClientBookmark{URL: url, Deleted: true}
}

func findURL(records []domain.BookmarkRecord, url string) []domain.BookmarkRecord {
	var out []domain.BookmarkRecord
	for _, r := range records {
		if r.URL == url {
			out = append(out, r)
		}
	}
	return out
}

func TestMergeAddition(t *testing.T) {
	store := memory.New()
	r := newReconciler(store, newClock(base))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		{ClientID: "c1", URL: "https://go.dev", Title: "Go", FolderPath: "/Bar/Dev", ClientUpdatedAtMs: 100},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Added != 1 || res.Updated != 0 || res.Deleted != 0 || res.Conflicts != 0 {
		t.Errorf("counts = %+v, want added=1 only", res)
	}

	got := findURL(res.Records, "https://go.dev")
	if len(got) != 1 {
		t.Fatalf("merged snapshot has %d records for url, want 1", len(got))
	}
	rec := got[0]
	if rec.Title != "Go" || rec.FolderPath != "/Bar/Dev" || rec.ClientID != "c1" {
		t.Errorf("record fields = %+v", rec)
	}
	if !rec.CreatedAt.Equal(base) || !rec.UpdatedAt.Equal(base) {
		t.Errorf("timestamps = %v/%v, want %v", rec.CreatedAt, rec.UpdatedAt, base)
	}
	if rec.UserID != userID {
		t.Errorf("UserID = %d, want %d", rec.UserID, userID)
	}
}

func TestMergeIdempotent(t *testing.T) {
	store := memory.New()
	c := newClock(base)
	r := newReconciler(store, c)

	snapshot := []domain.ClientBookmark{
		live("https://a.example", "A", base.Add(-time.Hour).UnixMilli()),
		live("https://b.example", "B", base.Add(-time.Hour).UnixMilli()),
		deleted("https://never.example"),
		{Title: "no url"},
	}

	first, err := r.Merge(context.Background(), userID, snapshot)
	if err != nil {
		t.Fatalf("first Merge() error = %v", err)
	}
	if first.Added != 2 {
		t.Fatalf("first Added = %d, want 2", first.Added)
	}

	c.Advance(time.Minute)
	second, err := r.Merge(context.Background(), userID, snapshot)
	if err != nil {
		t.Fatalf("second Merge() error = %v", err)
	}
	if second.Added != 0 || second.Updated != 0 || second.Deleted != 0 {
		t.Errorf("second counts = %+v, want all zero", second)
	}
	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Errorf("merged snapshots differ:\n first=%+v\nsecond=%+v", first.Records, second.Records)
	}
	if !reflect.DeepEqual(first.Bookmarks(), second.Bookmarks()) {
		t.Error("wire snapshots differ")
	}
}

func TestMergeLastWriterWins(t *testing.T) {
	store := memory.New()
	t0 := base.Add(-24 * time.Hour)
	store.Seed(domain.BookmarkRecord{
		UserID: userID, URL: "https://u.example", Title: "old",
		CreatedAt: t0, UpdatedAt: t0,
	})
	c := newClock(base)
	r := newReconciler(store, c)

	t1 := t0.Add(time.Hour).UnixMilli()
	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		{ClientID: "x", URL: "https://u.example", Title: "new", FolderPath: "/b", ClientUpdatedAtMs: t1},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", res.Updated)
	}
	rec := findURL(res.Records, "https://u.example")[0]
	if rec.Title != "new" || rec.FolderPath != "/b" || rec.ClientID != "x" {
		t.Errorf("record not overwritten: %+v", rec)
	}
	if !rec.UpdatedAt.Equal(base) {
		t.Errorf("UpdatedAt = %v, want %v", rec.UpdatedAt, base)
	}

	c.Advance(time.Minute)
	t2 := t0.Add(30 * time.Minute).UnixMilli()
	res, err = r.Merge(context.Background(), userID, []domain.ClientBookmark{
		live("https://u.example", "stale", t2),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Updated != 0 {
		t.Errorf("Updated = %d, want 0 for older client timestamp", res.Updated)
	}
	if got := findURL(res.Records, "https://u.example")[0].Title; got != "new" {
		t.Errorf("Title = %q, want %q", got, "new")
	}
}

func TestMergeTieFavorsCloud(t *testing.T) {
	store := memory.New()
	t0 := base.Add(-time.Hour)
	store.Seed(domain.BookmarkRecord{UserID: userID, URL: "https://t.example", Title: "cloud", CreatedAt: t0, UpdatedAt: t0})
	r := newReconciler(store, newClock(base))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		live("https://t.example", "client", t0.UnixMilli()),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Updated != 0 || res.Conflicts != 0 {
		t.Errorf("counts = %+v, want no update and no conflict", res)
	}
	if got := res.Records[0].Title; got != "cloud" {
		t.Errorf("Title = %q, want cloud", got)
	}
}

func TestMergeMissingTimestampNeverOverwrites(t *testing.T) {
	store := memory.New()
	store.Seed(domain.BookmarkRecord{UserID: userID, URL: "https://m.example", Title: "cloud", CreatedAt: base, UpdatedAt: base})
	r := newReconciler(store, newClock(base.Add(time.Hour)))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		{URL: "https://m.example", Title: "client"},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Updated != 0 {
		t.Errorf("Updated = %d, want 0", res.Updated)
	}
}

func TestMergeDeletionTerminality(t *testing.T) {
	store := memory.New()
	store.Seed(domain.BookmarkRecord{UserID: userID, URL: "https://d.example", Title: "gone", CreatedAt: base, UpdatedAt: base})
	c := newClock(base.Add(time.Hour))
	r := newReconciler(store, c)

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{deleted("https://d.example")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Deleted != 1 || res.Conflicts != 0 {
		t.Errorf("counts = %+v, want deleted=1", res)
	}
	if len(findURL(res.Records, "https://d.example")) != 0 {
		t.Error("deleted record still in merged snapshot")
	}

	old, ok := store.Record(1)
	if !ok {
		t.Fatal("soft-deleted record was physically removed")
	}
	if old.DeletedAt == nil || !old.DeletedAt.Equal(c.Now()) {
		t.Errorf("DeletedAt = %v, want %v", old.DeletedAt, c.Now())
	}

	// Deleting again is a no-op.
	c.Advance(time.Minute)
	res, err = r.Merge(context.Background(), userID, []domain.ClientBookmark{deleted("https://d.example")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Deleted != 0 {
		t.Errorf("second delete Deleted = %d, want 0", res.Deleted)
	}

	// Re-adding creates a new identity.
	c.Advance(time.Minute)
	res, err = r.Merge(context.Background(), userID, []domain.ClientBookmark{live("https://d.example", "back", 0)})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Added != 1 {
		t.Errorf("Added = %d, want 1", res.Added)
	}
	got := findURL(res.Records, "https://d.example")
	if len(got) != 1 {
		t.Fatalf("live records for url = %d, want 1", len(got))
	}
	if got[0].ID == old.ID {
		t.Error("deleted record was revived instead of a new one being created")
	}
	if old, _ := store.Record(old.ID); old.IsLive() {
		t.Error("old record became live again")
	}
}

func TestMergeDeleteUnknownIsNoop(t *testing.T) {
	store := memory.New()
	r := newReconciler(store, newClock(base))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{deleted("https://nope.example")})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Added+res.Updated+res.Deleted != 0 {
		t.Errorf("counts = %+v, want zero", res)
	}
	if store.Count() != 0 {
		t.Errorf("store has %d records, want 0", store.Count())
	}
}

func TestMergeCloudOnlySurvives(t *testing.T) {
	store := memory.New()
	v := domain.BookmarkRecord{
		UserID: userID, ClientID: "v", URL: "https://v.example", Title: "V", FolderPath: "/other",
		CreatedAt: base.Add(-time.Hour), UpdatedAt: base.Add(-time.Hour),
	}
	store.Seed(v)
	r := newReconciler(store, newClock(base))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{live("https://w.example", "W", 1)})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Added != 1 || res.Updated != 0 || res.Deleted != 0 {
		t.Errorf("counts = %+v, want added=1 only", res)
	}
	got := findURL(res.Records, "https://v.example")
	if len(got) != 1 {
		t.Fatal("cloud-only record did not survive")
	}
	v.ID = got[0].ID
	if !reflect.DeepEqual(got[0], v) {
		t.Errorf("cloud-only record mutated:\n got=%+v\nwant=%+v", got[0], v)
	}
}

func TestMergeMalformedEntries(t *testing.T) {
	store := memory.New()
	r := newReconciler(store, newClock(base))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		{Title: "no url"},
		{Title: "deleted without url", Deleted: true},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Added+res.Updated+res.Deleted+res.Conflicts != 0 {
		t.Errorf("counts = %+v, want zero", res)
	}
	if len(store.Journal(userID)) != 1 {
		t.Error("zero-count merge must still write one journal entry")
	}
}

func TestMergeURLIsByteExact(t *testing.T) {
	store := memory.New()
	store.Seed(domain.BookmarkRecord{UserID: userID, URL: "https://x.example/", CreatedAt: base, UpdatedAt: base})
	r := newReconciler(store, newClock(base))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		live("https://x.example", "no slash", 0),
		live("HTTPS://x.example/", "upper", 0),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Added != 2 {
		t.Errorf("Added = %d, want 2 distinct urls", res.Added)
	}
	if len(res.Records) != 3 {
		t.Errorf("live records = %d, want 3", len(res.Records))
	}
}

func TestMergeDuplicateURLsInSnapshot(t *testing.T) {
	t0 := base.Add(-time.Hour)

	tests := []struct {
		name        string
		seed        bool
		snapshot    []domain.ClientBookmark
		wantAdded   int
		wantUpdated int
		wantDeleted int
		wantLive    int
		wantTitle   string
	}{
		{
			name:      "added twice keeps last fields",
			snapshot:  []domain.ClientBookmark{live("https://dup", "first", 0), live("https://dup", "second", 0)},
			wantAdded: 1, wantLive: 1, wantTitle: "second",
		},
		{
			name:     "added then deleted cancels",
			snapshot: []domain.ClientBookmark{live("https://dup", "first", 0), deleted("https://dup")},
		},
		{
			name:        "updated twice counts once and last wins",
			seed:        true,
			snapshot:    []domain.ClientBookmark{live("https://dup", "one", t0.UnixMilli() + 1), live("https://dup", "two", t0.UnixMilli() + 2)},
			wantUpdated: 1, wantLive: 1, wantTitle: "two",
		},
		{
			name:        "updated then deleted counts as delete",
			seed:        true,
			snapshot:    []domain.ClientBookmark{live("https://dup", "one", t0.UnixMilli() + 1), deleted("https://dup")},
			wantDeleted: 1,
		},
		{
			name:        "deleted then re-added is a new record",
			seed:        true,
			snapshot:    []domain.ClientBookmark{deleted("https://dup"), live("https://dup", "fresh", 0)},
			wantAdded:   1,
			wantDeleted: 1,
			wantLive:    1,
			wantTitle:   "fresh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.New()
			if tt.seed {
				store.Seed(domain.BookmarkRecord{UserID: userID, URL: "https://dup", Title: "cloud", CreatedAt: t0, UpdatedAt: t0})
			}
			r := newReconciler(store, newClock(base))

			res, err := r.Merge(context.Background(), userID, tt.snapshot)
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			if res.Added != tt.wantAdded || res.Updated != tt.wantUpdated || res.Deleted != tt.wantDeleted {
				t.Errorf("counts = a%d u%d d%d, want a%d u%d d%d",
					res.Added, res.Updated, res.Deleted, tt.wantAdded, tt.wantUpdated, tt.wantDeleted)
			}
			got := findURL(res.Records, "https://dup")
			if len(got) != tt.wantLive {
				t.Fatalf("live records = %d, want %d", len(got), tt.wantLive)
			}
			if tt.wantLive == 1 && got[0].Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got[0].Title, tt.wantTitle)
			}
		})
	}
}

func TestMergeUpdatedAtMonotonic(t *testing.T) {
	store := memory.New()
	future := base.Add(time.Hour)
	store.Seed(domain.BookmarkRecord{UserID: userID, URL: "https://skew", Title: "cloud", CreatedAt: future, UpdatedAt: future})
	// Server clock went backwards relative to the stored record.
	r := newReconciler(store, newClock(base))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		live("https://skew", "client", future.Add(time.Minute).UnixMilli()),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", res.Updated)
	}
	if got := res.Records[0].UpdatedAt; got.Before(future) {
		t.Errorf("UpdatedAt moved backwards: %v < %v", got, future)
	}
}

func TestMergeJournal(t *testing.T) {
	store := memory.New()
	store.Seed(
		domain.BookmarkRecord{UserID: userID, URL: "https://1", CreatedAt: base, UpdatedAt: base},
		domain.BookmarkRecord{UserID: userID, URL: "https://2", CreatedAt: base, UpdatedAt: base},
	)
	c := newClock(base.Add(time.Hour))
	r := newReconciler(store, c)

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{
		live("https://1", "newer", c.Now().UnixMilli()),
		deleted("https://2"),
		live("https://3", "fresh", 0),
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	entries := store.Journal(userID)
	if len(entries) != 1 {
		t.Fatalf("journal entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != domain.SyncMerge {
		t.Errorf("Action = %q, want merge", e.Action)
	}
	if e.Added != res.Added || e.Updated != res.Updated || e.Deleted != res.Deleted || e.Conflicts != res.Conflicts {
		t.Errorf("journal %+v does not match result %+v", e, res)
	}
	if e.Added != 1 || e.Updated != 1 || e.Deleted != 1 || e.Conflicts != 0 {
		t.Errorf("journal counts = %+v", e)
	}
	if !e.CreatedAt.Equal(c.Now()) {
		t.Errorf("journal CreatedAt = %v, want %v", e.CreatedAt, c.Now())
	}
}

func TestMergeStorageFailure(t *testing.T) {
	store := memory.New()
	store.Seed(domain.BookmarkRecord{UserID: userID, URL: "https://keep", Title: "keep", CreatedAt: base, UpdatedAt: base})
	r := newReconciler(store, newClock(base.Add(time.Hour)))

	boom := errors.New("disk full")
	store.FailNextApply(boom)

	snapshot := []domain.ClientBookmark{deleted("https://keep"), live("https://new", "new", 0)}
	_, err := r.Merge(context.Background(), userID, snapshot)
	if err == nil {
		t.Fatal("Merge() error = nil, want storage failure")
	}
	if !errors.Is(err, reconcile.ErrStorage) || !errors.Is(err, boom) {
		t.Errorf("error %v should match ErrStorage and the cause", err)
	}
	var se *reconcile.StorageError
	if !errors.As(err, &se) || se.Op != "apply" {
		t.Errorf("error %v should be a StorageError with op apply", err)
	}

	if n := len(store.Journal(userID)); n != 0 {
		t.Errorf("journal entries after failure = %d, want 0", n)
	}
	if rec, _ := store.Record(1); !rec.IsLive() {
		t.Error("failed merge left a visible deletion")
	}
	if store.Count() != 1 {
		t.Errorf("failed merge left %d records, want 1", store.Count())
	}

	// Retrying after a failure applies exactly once.
	res, err := r.Merge(context.Background(), userID, snapshot)
	if err != nil {
		t.Fatalf("retry Merge() error = %v", err)
	}
	if res.Added != 1 || res.Deleted != 1 {
		t.Errorf("retry counts = %+v, want added=1 deleted=1", res)
	}
	res, err = r.Merge(context.Background(), userID, snapshot)
	if err != nil {
		t.Fatalf("second retry Merge() error = %v", err)
	}
	if res.Added != 0 || res.Deleted != 0 {
		t.Errorf("second retry counts = %+v, want zero", res)
	}
}

func TestMergeLoadFailure(t *testing.T) {
	store := memory.New()
	store.FailLoads(errors.New("connection reset"))
	r := newReconciler(store, newClock(base))

	_, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{live("https://a", "a", 0)})
	if !errors.Is(err, reconcile.ErrStorage) {
		t.Fatalf("Merge() error = %v, want ErrStorage", err)
	}
	if len(store.Journal(userID)) != 0 {
		t.Error("journal written despite load failure")
	}
}

func TestMergeInvalidUser(t *testing.T) {
	r := newReconciler(memory.New(), newClock(base))
	if _, err := r.Merge(context.Background(), 0, nil); !errors.Is(err, reconcile.ErrInvalidUser) {
		t.Errorf("Merge() error = %v, want ErrInvalidUser", err)
	}
}

func TestMergeIsolatesUsers(t *testing.T) {
	store := memory.New()
	store.Seed(domain.BookmarkRecord{UserID: 99, URL: "https://shared", Title: "other", CreatedAt: base, UpdatedAt: base})
	r := newReconciler(store, newClock(base.Add(time.Hour)))

	res, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{deleted("https://shared"), live("https://mine", "m", 0)})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if res.Deleted != 0 {
		t.Error("merge deleted another user's record")
	}
	if rec, _ := store.Record(1); !rec.IsLive() || rec.Title != "other" {
		t.Errorf("other user's record changed: %+v", rec)
	}
	for _, rec := range res.Records {
		if rec.UserID != userID {
			t.Errorf("merged snapshot leaked record of user %d", rec.UserID)
		}
	}
}

func TestMergeConcurrentSameUser(t *testing.T) {
	store := memory.New()
	r := newReconciler(store, newClock(base))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Merge(context.Background(), userID, []domain.ClientBookmark{live("https://race", "r", 0)})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Merge() error = %v", err)
		}
	}
	recs, _ := store.LoadLiveRecords(context.Background(), userID)
	if len(recs) != 1 {
		t.Errorf("live records = %d, want 1", len(recs))
	}
	if n := len(store.Journal(userID)); n != 20 {
		t.Errorf("journal entries = %d, want 20", n)
	}
}

func TestMergeLockWaitTimesOut(t *testing.T) {
	store := memory.New()
	locks := lock.NewLocal()
	r := reconcile.New(store, locks, logger.Nop(),
		reconcile.WithClock(newClock(base).Now),
		reconcile.WithLockWait(20*time.Millisecond))

	unlock, err := locks.Lock(context.Background(), userID)
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}
	defer unlock()

	_, err = r.Merge(context.Background(), userID, []domain.ClientBookmark{live("https://busy", "b", 0)})
	var se *reconcile.StorageError
	if !errors.As(err, &se) || se.Op != "lock" || !errors.Is(err, reconcile.ErrStorage) {
		t.Fatalf("Merge() error = %v, want lock StorageError", err)
	}
	if store.Count() != 0 || len(store.Journal(userID)) != 0 {
		t.Error("a merge that never got the lock must not write anything")
	}
}

func TestResultBookmarksWireShape(t *testing.T) {
	created := base
	res := reconcile.Result{Records: []domain.BookmarkRecord{
		{ID: 1, ClientID: "chrome-1", URL: "https://a", Title: "A", CreatedAt: created},
		{ID: 2, URL: "https://b", CreatedAt: created},
	}}

	wire := res.Bookmarks()
	if len(wire) != 2 {
		t.Fatalf("len = %d, want 2", len(wire))
	}
	if *wire[0].ID != "chrome-1" {
		t.Errorf("id = %q, want client id", *wire[0].ID)
	}
	if *wire[1].ID != "2" {
		t.Errorf("id = %q, want server id fallback", *wire[1].ID)
	}
	if *wire[0].DateAdded != created.UnixMilli() {
		t.Errorf("dateAdded = %d, want %d", *wire[0].DateAdded, created.UnixMilli())
	}
}
