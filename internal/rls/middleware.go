package rls

import (
	"context"
	"log/slog"
	"net/http"

	"quoin/internal/identity"
	"quoin/internal/platform/config"
	"quoin/pkg/apierrors"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

// Middleware binds session claims for the request's resolved tenant. It
// must run after authentication and tenant resolution.
//
// If claims are already applied (a nested router wrapped the route twice)
// the middleware is a no-op: binding happens at most once per request.
//
// On binding failure the fail mode decides: fail_closed rejects with
// DB_UNAVAILABLE; degraded marks the request and continues without a
// session, leaving tenant-scoped stores to fail closed individually.
func Middleware(manager *Manager, failMode config.FailMode, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if requestcontext.ClaimsApplied(ctx) {
				manager.metrics.IncrementSession(outcomeSkipped)
				next.ServeHTTP(w, r)
				return
			}

			actor, ok := identity.FromContext(ctx)
			if !ok {
				httputil.WriteError(w, r, apierrors.New(apierrors.CodeAuthTokenMissing, "authentication required"))
				return
			}
			tenantID := requestcontext.TenantID(ctx)
			if tenantID.IsNil() {
				httputil.WriteError(w, r, apierrors.New(apierrors.CodeAuthTokenInvalid, "no tenant context"))
				return
			}

			claims := NewSessionClaims(actor, tenantID, requestcontext.CorrelationID(ctx))
			session, err := manager.AcquireSession(ctx, claims)
			if err != nil {
				if failMode == config.FailModeDegraded {
					requestcontext.MarkSessionDegraded(ctx)
					manager.metrics.IncrementSession(outcomeDegraded)
					logger.WarnContext(ctx, "continuing without session claims",
						"tenant_id", tenantID.String(),
						"error", err,
					)
					next.ServeHTTP(w, r)
					return
				}
				logger.ErrorContext(ctx, "session claims binding failed",
					"tenant_id", tenantID.String(),
					"error", err,
				)
				httputil.WriteError(w, r, err)
				return
			}

			if !requestcontext.MarkClaimsApplied(ctx) {
				// Another binding won the race for this request.
				session.Release(context.WithoutCancel(ctx))
				next.ServeHTTP(w, r)
				return
			}

			// Reset must run even when the handler's context is canceled.
			defer session.Release(context.WithoutCancel(ctx))
			next.ServeHTTP(w, r.WithContext(WithSession(ctx, session)))
		})
	}
}
