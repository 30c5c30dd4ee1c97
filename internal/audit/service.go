package audit

import (
	"context"
	"fmt"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// Store is a sink that also supports the admin query surface.
type Store interface {
	Sink

	// List returns entries newest-first, narrowed by the filter.
	List(ctx context.Context, f Filter) ([]Entry, error)

	// Clear removes every entry and reports how many were dropped.
	Clear(ctx context.Context) (int64, error)
}

// Service answers administrative queries over recorded entries.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// List returns entries matching the filter, newest first. Unset limits
// default; oversized limits clamp to the query ceiling.
func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultQueryLimit
	}
	if f.Limit > maxQueryLimit {
		f.Limit = maxQueryLimit
	}

	entries, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// Clear removes the recorded trail. Callers gate this behind the system
// administrator capability.
func (s *Service) Clear(ctx context.Context) (int64, error) {
	n, err := s.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear audit entries: %w", err)
	}
	return n, nil
}
