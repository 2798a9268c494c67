package services

import (
	"strings"

	"github.com/sasha-s/go-deadlock"
)

// ListingLocks serializes mutations per listing id. Operations on different
// listings never wait on each other. Idle entries are dropped.
type ListingLocks struct {
	mu    deadlock.Mutex
	locks map[string]*listingLock
}

type listingLock struct {
	mu   deadlock.Mutex
	key  string
	refs int
}

func NewListingLocks() *ListingLocks {
	return &ListingLocks{locks: make(map[string]*listingLock)}
}

// Lock blocks until the listing is free and returns the matching unlock.
func (l *ListingLocks) Lock(id string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		// Callers may pass strings backed by reused buffers.
		e = &listingLock{key: strings.Clone(id)}
		l.locks[e.key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, e.key)
		}
		l.mu.Unlock()
	}
}

// size reports how many listings currently have waiters or holders.
func (l *ListingLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
