// Package lock provides the in-process per-user lock used when no redis is
// configured.
package lock

import (
	"context"
	"sync"
)

// Local is a keyed mutex. Entries are reference counted and dropped when
// the last holder or waiter leaves, so memory stays bounded by the number
// of users currently syncing.
type Local struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	ch   chan struct{} // buffered(1): holding the token means holding the lock
	refs int
}

// NewLocal creates an empty keyed lock.
func NewLocal() *Local {
	return &Local{locks: make(map[int64]*entry)}
}

// Lock blocks until the lock for userID is held or ctx is done.
func (l *Local) Lock(ctx context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	e := l.locks[userID]
	if e == nil {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[userID] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(userID, e)
		})
	}, nil
}

func (l *Local) release(userID int64, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.locks, userID)
	}
}

// Held returns the number of users with a holder or waiter.
func (l *Local) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
