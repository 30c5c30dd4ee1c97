package tenant

import (
	"log/slog"
	"net/http"

	"quoin/internal/identity"
	"quoin/pkg/apierrors"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

// Header names the requested tenant. It accepts a tenant UUID or slug;
// when absent, the actor's token claim decides the tenant.
const Header = "X-Tenant-ID"

// RequireTenant resolves the request's tenant and stores its ID in the
// context for downstream session and data layers. It must run after
// authentication.
func RequireTenant(resolver *Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actor, _ := identity.FromContext(ctx)
			resolved, err := resolver.Resolve(ctx, actor, r.Header.Get(Header))
			if err != nil {
				if apierrors.CodeOf(err) == apierrors.CodeDBUnavailable {
					logger.ErrorContext(ctx, "tenant resolution unavailable", "error", err)
				} else {
					logger.WarnContext(ctx, "tenant resolution rejected", "error", err)
				}
				httputil.WriteError(w, r, err)
				return
			}

			ctx = requestcontext.WithTenantID(ctx, resolved.ID)
			requestcontext.PublishTenant(ctx, resolved.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
