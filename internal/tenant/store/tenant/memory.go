// Package tenant provides tenant persistence backends.
package tenant

import (
	"context"
	"strings"
	"sync"

	"quoin/internal/tenant/models"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded tenant store for tests and development.
type InMemory struct {
	mu      sync.RWMutex
	byID    map[id.TenantID]*models.Tenant
	slugIdx map[string]id.TenantID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:    make(map[id.TenantID]*models.Tenant),
		slugIdx: make(map[string]id.TenantID),
	}
}

// clone copies the tenant so callers can't mutate store state.
func clone(t *models.Tenant) *models.Tenant {
	cp := *t
	return &cp
}

// CreateIfSlugAvailable inserts the tenant unless the slug is taken
// (case-insensitive). Returns sentinel.ErrConflict on a taken slug.
func (s *InMemory) CreateIfSlugAvailable(ctx context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(t.Slug)
	if _, exists := s.slugIdx[key]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.byID[t.ID]; exists {
		return sentinel.ErrConflict
	}

	s.byID[t.ID] = clone(t)
	s.slugIdx[key] = t.ID
	return nil
}

func (s *InMemory) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[tenantID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(t), nil
}

// FindBySlug looks a tenant up by slug, case-insensitively.
func (s *InMemory) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID, ok := s.slugIdx[strings.ToLower(slug)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(s.byID[tenantID]), nil
}

func (s *InMemory) Update(ctx context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[t.ID] = clone(t)
	return nil
}
