// Package memory is an in-process RecordStore. It backs tests and local
// development; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/MrSnakeDoc/marksync/internal/domain"
	"github.com/MrSnakeDoc/marksync/internal/reconcile"
)

// Store keeps every record, live or soft-deleted, keyed by id.
type Store struct {
	mu       sync.RWMutex
	nextID   int64
	records  map[int64]*domain.BookmarkRecord // ID -> record
	journal  []domain.JournalEntry
	failNext error // returned once by the next ApplyMerge
	failLoad error // returned by every LoadLiveRecords while set
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[int64]*domain.BookmarkRecord),
	}
}

// Seed inserts records as-is, assigning ids when missing.
func (s *Store) Seed(records ...domain.BookmarkRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec.ID == 0 {
			s.nextID++
			rec.ID = s.nextID
		} else if rec.ID > s.nextID {
			s.nextID = rec.ID
		}
		r := rec
		s.records[r.ID] = &r
	}
}

// FailNextApply makes the next ApplyMerge return err without writing.
func (s *Store) FailNextApply(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// FailLoads makes LoadLiveRecords return err until reset with nil.
func (s *Store) FailLoads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLoad = err
}

// LoadLiveRecords implements reconcile.RecordStore.
func (s *Store) LoadLiveRecords(ctx context.Context, userID int64) ([]domain.BookmarkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.failLoad != nil {
		return nil, s.failLoad
	}

	out := make([]domain.BookmarkRecord, 0)
	for _, rec := range s.records {
		if rec.UserID == userID && rec.IsLive() {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ApplyMerge implements reconcile.RecordStore. The batch is validated in
// full before anything is written, so a rejected batch leaves no trace.
func (s *Store) ApplyMerge(ctx context.Context, userID int64, batch reconcile.Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}

	for _, upd := range batch.Updates {
		cur, ok := s.records[upd.ID]
		if !ok || cur.UserID != userID {
			return fmt.Errorf("record %d not found for user %d", upd.ID, userID)
		}
		if !cur.IsLive() {
			return fmt.Errorf("record %d is already deleted", upd.ID)
		}
	}

	// Same constraint as the sqlite partial unique index.
	liveURLs := make(map[string]bool)
	for _, rec := range s.records {
		if rec.UserID == userID && rec.IsLive() {
			liveURLs[rec.URL] = true
		}
	}
	for _, upd := range batch.Updates {
		if !upd.IsLive() {
			delete(liveURLs, s.records[upd.ID].URL)
		}
	}
	for _, ins := range batch.Inserts {
		if liveURLs[ins.URL] {
			return fmt.Errorf("live record already exists for url %q", ins.URL)
		}
		liveURLs[ins.URL] = true
	}

	for _, upd := range batch.Updates {
		r := upd
		s.records[r.ID] = &r
	}
	for _, ins := range batch.Inserts {
		s.nextID++
		r := ins
		r.ID = s.nextID
		r.UserID = userID
		s.records[r.ID] = &r
	}

	entry := batch.Journal
	entry.ID = int64(len(s.journal) + 1)
	s.journal = append(s.journal, entry)
	return nil
}

// Record returns a copy of any record, including soft-deleted ones.
func (s *Store) Record(id int64) (domain.BookmarkRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return domain.BookmarkRecord{}, false
	}
	return *rec, true
}

// Count returns the number of records ever stored, deleted ones included.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// Journal returns the journal entries of userID in append order.
func (s *Store) Journal(userID int64) []domain.JournalEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.JournalEntry
	for _, e := range s.journal {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}
