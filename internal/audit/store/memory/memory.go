// Package memory provides the bounded in-process audit store that backs
// the admin surface. It keeps the newest entries up to a fixed capacity.
package memory

import (
	"context"
	"sync"

	"quoin/internal/audit"
)

// Store holds recorded entries in memory, oldest evicted first once the
// capacity is reached.
type Store struct {
	mu       sync.RWMutex
	entries  []audit.Entry
	capacity int
}

// New creates a store bounded to capacity entries.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Store{capacity: capacity}
}

// Append adds sealed entries, evicting the oldest past capacity.
func (s *Store) Append(ctx context.Context, entries []audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entries...)
	if over := len(s.entries) - s.capacity; over > 0 {
		s.entries = append([]audit.Entry(nil), s.entries[over:]...)
	}
	return nil
}

// List returns matching entries newest-first, up to the filter limit.
func (s *Store) List(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := f.Limit
	if limit <= 0 {
		limit = len(s.entries)
	}

	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if f.Matches(s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// Clear drops every entry and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.entries))
	s.entries = nil
	return n, nil
}

// Len reports the current number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
