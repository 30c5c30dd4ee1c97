package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"quoin/internal/platform/redis"
	tenantmetrics "quoin/internal/tenant/metrics"
	"quoin/internal/tenant/models"
	id "quoin/pkg/domain"
)

// Store is the persistence contract the resolver depends on.
type Store interface {
	CreateIfSlugAvailable(ctx context.Context, t *models.Tenant) error
	FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	Update(ctx context.Context, t *models.Tenant) error
}

// CachedStore is a read-through Redis cache over another Store. Tenant
// records are read on every request, so resolution must not hit Postgres
// each time. Cache failures are logged and fall through to the inner
// store; the cache can never break tenant resolution.
type CachedStore struct {
	inner   Store
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
}

func NewCached(inner Store, client *redis.Client, ttl time.Duration, logger *slog.Logger, m *tenantmetrics.Metrics) *CachedStore {
	return &CachedStore{
		inner:   inner,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

func idKey(tenantID id.TenantID) string { return "quoin:tenant:id:" + tenantID.String() }
func slugKey(slug string) string        { return "quoin:tenant:slug:" + strings.ToLower(slug) }

func (s *CachedStore) CreateIfSlugAvailable(ctx context.Context, t *models.Tenant) error {
	if err := s.inner.CreateIfSlugAvailable(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, t)
	return nil
}

func (s *CachedStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	if t, ok := s.get(ctx, idKey(tenantID)); ok {
		return t, nil
	}
	t, err := s.inner.FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, t)
	return t, nil
}

func (s *CachedStore) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	if t, ok := s.get(ctx, slugKey(slug)); ok {
		return t, nil
	}
	t, err := s.inner.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	s.put(ctx, t)
	return t, nil
}

func (s *CachedStore) Update(ctx context.Context, t *models.Tenant) error {
	if err := s.inner.Update(ctx, t); err != nil {
		return err
	}
	// Status flips (suspension) must be visible immediately, not after TTL.
	s.invalidate(ctx, t)
	return nil
}

func (s *CachedStore) get(ctx context.Context, key string) (*models.Tenant, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logger.DebugContext(ctx, "tenant cache read failed", "key", key, "error", err)
		}
		s.metrics.IncrementCacheMiss()
		return nil, false
	}
	var t models.Tenant
	if err := json.Unmarshal(raw, &t); err != nil {
		s.logger.WarnContext(ctx, "tenant cache entry corrupt", "key", key, "error", err)
		s.metrics.IncrementCacheMiss()
		return nil, false
	}
	s.metrics.IncrementCacheHit()
	return &t, true
}

func (s *CachedStore) put(ctx context.Context, t *models.Tenant) {
	raw, err := json.Marshal(t)
	if err != nil {
		return
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, idKey(t.ID), raw, s.ttl)
	pipe.Set(ctx, slugKey(t.Slug), raw, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.DebugContext(ctx, "tenant cache write failed", "tenant_id", t.ID, "error", err)
	}
}

func (s *CachedStore) invalidate(ctx context.Context, t *models.Tenant) {
	if err := s.client.Del(ctx, idKey(t.ID), slugKey(t.Slug)).Err(); err != nil {
		s.logger.DebugContext(ctx, "tenant cache invalidation failed", "tenant_id", t.ID, "error", err)
	}
}
