// Package service hosts the tenant resolver and the lifecycle service.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"quoin/internal/capability"
	"quoin/internal/identity"
	tenantmetrics "quoin/internal/tenant/metrics"
	"quoin/internal/tenant/models"
	tenantstore "quoin/internal/tenant/store/tenant"
	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
)

// Resolution outcomes recorded in metrics.
const (
	outcomeResolved    = "resolved"
	outcomeMissing     = "missing"
	outcomeNotFound    = "not_found"
	outcomeMismatch    = "mismatch"
	outcomeSuspended   = "suspended"
	outcomeUnavailable = "unavailable"
)

// Resolver decides which tenant a request acts on and whether the actor
// is entitled to act on it.
//
// The X-Tenant-ID header names the requested tenant (UUID or slug); the
// actor's token claim authorizes acting as that tenant. Mismatches
// require the cross-tenant capability.
type Resolver struct {
	tenants tenantstore.Store
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
}

type serviceConfig struct {
	logger  *slog.Logger
	metrics *tenantmetrics.Metrics
}

// Option configures the resolver and the lifecycle service.
type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *tenantmetrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

func NewResolver(tenants tenantstore.Store, opts ...Option) *Resolver {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		tenants: tenants,
		logger:  logger,
		metrics: cfg.metrics,
	}
}

// Resolve returns the effective tenant for the request.
//
// requested is the raw X-Tenant-ID header value; when empty, the actor's
// own tenant claim is used. A request with no resolvable tenant on a
// tenant-scoped route is an authentication defect, not an authorization
// one: the caller presented credentials that don't establish tenancy.
func (r *Resolver) Resolve(ctx context.Context, actor *identity.Actor, requested string) (*models.Tenant, error) {
	start := time.Now()
	defer r.metrics.ObserveResolve(start)

	if actor == nil {
		r.metrics.IncrementResolution(outcomeMissing)
		return nil, apierrors.New(apierrors.CodeAuthTokenMissing, "authentication required")
	}

	if requested == "" && actor.TenantID.IsNil() {
		r.metrics.IncrementResolution(outcomeMissing)
		return nil, apierrors.New(apierrors.CodeAuthTokenInvalid, "no tenant context")
	}

	tenant, err := r.lookup(ctx, actor, requested)
	if err != nil {
		return nil, err
	}

	// Membership check: acting on a tenant other than the token's
	// requires the cross-tenant capability.
	if tenant.ID != actor.TenantID && !actor.Can(capability.CrossTenant) {
		r.metrics.IncrementResolution(outcomeMismatch)
		return nil, apierrors.New(apierrors.CodeAccessForbidden, "actor does not belong to the requested tenant")
	}

	if !tenant.IsActive() {
		r.metrics.IncrementResolution(outcomeSuspended)
		return nil, apierrors.New(apierrors.CodeAccessForbidden, "tenant is suspended")
	}

	r.metrics.IncrementResolution(outcomeResolved)
	return tenant, nil
}

func (r *Resolver) lookup(ctx context.Context, actor *identity.Actor, requested string) (*models.Tenant, error) {
	var (
		tenant *models.Tenant
		err    error
	)
	switch {
	case requested == "":
		tenant, err = r.tenants.FindByID(ctx, actor.TenantID)
	default:
		if tenantID, parseErr := id.ParseTenantID(requested); parseErr == nil {
			tenant, err = r.tenants.FindByID(ctx, tenantID)
		} else {
			// Not UUID-shaped; treat the header as a tenant slug.
			tenant, err = r.tenants.FindBySlug(ctx, requested)
		}
	}
	if err == nil {
		return tenant, nil
	}

	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		r.metrics.IncrementResolution(outcomeNotFound)
		// Don't disclose whether the tenant exists to actors outside it.
		return nil, apierrors.Wrap(err, apierrors.CodeAccessForbidden, "tenant is not available")
	case errors.Is(err, sentinel.ErrUnavailable):
		r.metrics.IncrementResolution(outcomeUnavailable)
		r.logger.ErrorContext(ctx, "tenant lookup unavailable", "error", err)
		return nil, apierrors.Wrap(err, apierrors.CodeDBUnavailable, "database unavailable")
	default:
		r.metrics.IncrementResolution(outcomeUnavailable)
		return nil, apierrors.Wrap(err, apierrors.CodeInternal, "tenant lookup failed")
	}
}
