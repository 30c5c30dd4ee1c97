package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	tenantmetrics "quoin/internal/tenant/metrics"
	"quoin/internal/tenant/models"
	tenantstore "quoin/internal/tenant/store/tenant"
	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
	"quoin/pkg/requestcontext"
)

// Service is the write side of tenant management: provisioning, suspension
// and reactivation on the platform admin surface. Request-time tenancy
// decisions live on Resolver.
type Service struct {
	tenants tenantstore.Store
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
}

func NewService(tenants tenantstore.Store, opts ...Option) *Service {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{tenants: tenants, logger: logger, metrics: cfg.metrics}
}

// Create provisions an active tenant. Slug uniqueness is case-insensitive
// and enforced by the store.
func (s *Service) Create(ctx context.Context, slug, name string) (*models.Tenant, error) {
	t, err := models.NewTenant(id.TenantID(uuid.New()), slug, name, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.tenants.CreateIfSlugAvailable(ctx, t); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return nil, apierrors.Wrap(err, apierrors.CodeConflict, "tenant slug is already in use")
		case errors.Is(err, sentinel.ErrUnavailable):
			return nil, apierrors.Wrap(err, apierrors.CodeDBUnavailable, "database unavailable")
		default:
			return nil, apierrors.Wrap(err, apierrors.CodeInternal, "failed to create tenant")
		}
	}

	s.logger.InfoContext(ctx, "tenant created", "tenant_id", t.ID, "slug", t.Slug)
	s.metrics.IncrementLifecycle("created")
	return t, nil
}

// Get returns a tenant by id.
func (s *Service) Get(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantLookup(err)
	}
	return t, nil
}

// Suspend transitions the tenant to suspended status. Requests for the
// tenant start failing on the next resolution; cached copies age out
// within the cache TTL.
func (s *Service) Suspend(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.transition(ctx, tenantID, "suspended", (*models.Tenant).Suspend)
}

// Reactivate transitions the tenant back to active status.
func (s *Service) Reactivate(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	return s.transition(ctx, tenantID, "reactivated", (*models.Tenant).Reactivate)
}

// transition is load-mutate-update: concurrent admin transitions are
// last-write-wins, which is acceptable for an operator surface.
func (s *Service) transition(ctx context.Context, tenantID id.TenantID, op string, apply func(*models.Tenant, time.Time) error) (*models.Tenant, error) {
	t, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		return nil, wrapTenantLookup(err)
	}

	if err := apply(t, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}

	if err := s.tenants.Update(ctx, t); err != nil {
		return nil, wrapTenantLookup(err)
	}

	s.logger.InfoContext(ctx, "tenant "+op, "tenant_id", t.ID, "slug", t.Slug)
	s.metrics.IncrementLifecycle(op)
	return t, nil
}

func wrapTenantLookup(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return apierrors.Wrap(err, apierrors.CodeNotFound, "tenant not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return apierrors.Wrap(err, apierrors.CodeDBUnavailable, "database unavailable")
	default:
		return apierrors.Wrap(err, apierrors.CodeInternal, "tenant lookup failed")
	}
}
