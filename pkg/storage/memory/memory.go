// Package memory provides an in-memory session.Store for testing and
// single-instance deployments. Sessions are lost when the process restarts.
// Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/rhuss/appgate/pkg/session"
	"github.com/rhuss/appgate/pkg/storage"
)

// entry holds a stored session and its position in the LRU list.
type entry struct {
	rec     session.Record
	lruElem *list.Element
}

// Store is an in-memory session store with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
	now     func() time.Time
}

// Ensure Store implements session.Store at compile time.
var _ session.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used session is evicted
// when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Lookup returns the session for token. Expired sessions are dropped and
// reported as storage.ErrNotFound.
func (s *Store) Lookup(_ context.Context, token string) (*session.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if e.rec.Expired(s.now()) {
		s.remove(token, e)
		return nil, storage.ErrNotFound
	}

	s.lruList.MoveToFront(e.lruElem)
	rec := e.rec
	return &rec, nil
}

// Save creates or replaces a session.
func (s *Store) Save(_ context.Context, rec session.Record) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[rec.Token]; exists {
		e.rec = rec
		s.lruList.MoveToFront(e.lruElem)
		return nil
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(rec.Token)
	s.entries[rec.Token] = &entry{rec: rec, lruElem: elem}
	return nil
}

// Delete removes a session.
func (s *Store) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return storage.ErrNotFound
	}
	s.remove(token, e)
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes all expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, e := range s.entries {
		if e.rec.Expired(now) {
			s.remove(token, e)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// remove deletes an entry. Must be called with s.mu held.
func (s *Store) remove(token string, e *entry) {
	s.lruList.Remove(e.lruElem)
	delete(s.entries, token)
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	token := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, token)
}
