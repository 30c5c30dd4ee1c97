// Package httptransport assembles the HTTP surface: the middleware
// pipeline every request walks and the route groups hanging off it.
//
// Order is the contract. Correlation runs first so every later stage can
// quote the request id; audit capture mounts ahead of authentication so
// rejected requests land in the trail; tenant resolution precedes session
// claims so the claims carry the effective tenant; capability gates sit
// per route group, after the identity is known.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quoin/internal/audit"
	"quoin/internal/capability"
	"quoin/internal/estimates"
	"quoin/internal/identity"
	"quoin/internal/platform/config"
	"quoin/internal/platform/metrics"
	"quoin/internal/rls"
	"quoin/internal/tenant"
	tenanthandler "quoin/internal/tenant/handler"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/middleware/correlation"
	"quoin/pkg/platform/middleware/device"
	"quoin/pkg/platform/middleware/metadata"
	"quoin/pkg/platform/middleware/requesttime"
)

// Pinger reports data-store reachability for the health endpoint.
// *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies carries everything the router wires together. main
// constructs the real set; router tests substitute stubs behind the
// same fields.
type Dependencies struct {
	Config    config.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Verifier  *identity.Verifier
	Resolver  *tenant.Resolver
	Tenants   *tenant.Service
	Sessions  *rls.Manager
	Recorder  *audit.Recorder
	AuditView *audit.Service
	Estimates estimates.Reader
	DB        Pinger
}

// NewRouter builds the full request pipeline and mounts every route group.
func NewRouter(deps Dependencies) *chi.Mux {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	requireAuth := identity.RequireAuth(deps.Verifier, logger, authOptions(deps.Config, logger)...)

	r := chi.NewRouter()
	r.Use(correlation.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(observeRequests(deps.Metrics))

	// Probes stay out of the audit trail.
	health := NewHealthHandler(deps.DB, deps.Recorder, logger)
	r.Get("/healthz", health.handle)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(api chi.Router) {
		api.Use(audit.Capture(deps.Recorder, deps.Config.Audit, logger))

		// Dev token minting; real deployments front an identity provider.
		if !deps.Config.IsProduction() {
			NewAuthHandler(deps.Verifier, logger).Register(api)
		}

		// Device self-service is globally scoped: authenticated, but
		// exempt from tenant resolution and session claims.
		api.Group(func(self chi.Router) {
			self.Use(requireAuth)
			self.Use(device.Identify)
			self.Route("/api/devices", func(dr chi.Router) {
				NewDeviceHandler(logger).Register(dr)
			})
		})

		// Tenant-scoped data surface: every request below here runs on a
		// database session carrying the resolved tenant's claims.
		api.Group(func(tenanted chi.Router) {
			tenanted.Use(requireAuth)
			tenanted.Use(tenant.RequireTenant(deps.Resolver, logger))
			tenanted.Use(rls.Middleware(deps.Sessions, deps.Config.EffectiveFailMode(), logger))

			eh := estimates.NewHandler(deps.Estimates, logger)
			tenanted.Route("/api/estimates", func(er chi.Router) {
				er.Use(capability.Require(capability.EstimateRead, logger))
				eh.RegisterEstimates(er)
			})
			tenanted.Route("/api/bids", func(br chi.Router) {
				br.Use(capability.Require(capability.BidRead, logger))
				eh.RegisterBids(br)
			})
		})

		// Admin surfaces span tenants, so they skip tenant resolution;
		// the capability gate alone guards them.
		api.Group(func(admin chi.Router) {
			admin.Use(requireAuth)
			admin.Use(capability.Require(capability.SystemAdmin, logger))
			admin.Route("/api/admin/audit", func(ar chi.Router) {
				audit.NewHandler(deps.AuditView, logger).Register(ar)
			})
			admin.Route("/api/admin/tenants", func(tr chi.Router) {
				tenanthandler.New(deps.Tenants, logger).Register(tr)
			})
		})
	})

	return r
}

// authOptions enables the stub-actor bypass when the config asks for it.
// Bypass is honored only outside production, regardless of config.
func authOptions(cfg config.Config, logger *slog.Logger) []identity.AuthOption {
	if !cfg.Auth.Bypass || cfg.IsProduction() {
		return nil
	}
	logger.Warn("authentication bypass active, every request runs as the stub system actor")
	return []identity.AuthOption{identity.WithBypassActor(BypassActor())}
}

// BypassActor is the fixed identity substituted for token verification
// when the bypass flag is set. It carries no tenant claim; acting on a
// tenant requires naming one explicitly, which the wildcard grant allows.
func BypassActor() *identity.Actor {
	return &identity.Actor{
		ID:          id.UserID(uuid.MustParse("00000000-0000-0000-0000-000000000001")),
		Email:       "bypass@quoin.dev",
		Roles:       []string{"system"},
		Permissions: []string{identity.WildcardCapability},
	}
}
