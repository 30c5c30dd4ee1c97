// Package capability gates routes on the permissions carried by the
// authenticated actor.
package capability

import (
	"log/slog"
	"net/http"

	"quoin/internal/identity"
	"quoin/pkg/apierrors"
	"quoin/pkg/platform/httputil"
)

// Well-known capability names. Route handlers declare the capability they
// need; tokens grant them individually or via the wildcard.
const (
	// CrossTenant lets an actor act on tenants other than the one named
	// in its token claim.
	CrossTenant = "tenant:any"

	// SystemAdmin guards platform administration surfaces such as the
	// audit query API.
	SystemAdmin = "system:admin"

	EstimateRead = "estimate:read"
	BidRead      = "bid:read"
)

// Require returns middleware that rejects requests whose actor does not
// hold the named capability. It must run after authentication; a request
// with no actor in context is treated as unauthenticated rather than
// forbidden.
func Require(capability string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actor, ok := identity.FromContext(ctx)
			if !ok {
				logger.WarnContext(ctx, "capability check without actor", "capability", capability)
				httputil.WriteError(w, r, apierrors.New(apierrors.CodeAuthTokenMissing, "authentication required"))
				return
			}

			if !actor.Can(capability) {
				logger.WarnContext(ctx, "capability denied",
					"capability", capability,
					"user_id", actor.ID.String(),
				)
				httputil.WriteError(w, r, apierrors.New(apierrors.CodeAccessForbidden, "missing required capability"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
