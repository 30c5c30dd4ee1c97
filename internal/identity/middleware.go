package identity

import (
	"log/slog"
	"net/http"
	"strings"

	"quoin/pkg/apierrors"
	"quoin/pkg/platform/httputil"
	"quoin/pkg/requestcontext"
)

// TokenVerifier defines the interface for verifying access tokens.
type TokenVerifier interface {
	VerifyToken(tokenString string) (*Actor, error)
}

type authOptions struct {
	bypassActor *Actor
}

// AuthOption configures RequireAuth.
type AuthOption func(*authOptions)

// WithBypassActor substitutes token verification with a fixed stub actor.
// For automated testing environments only; config validation refuses the
// bypass flag in production.
func WithBypassActor(actor *Actor) AuthOption {
	return func(o *authOptions) {
		o.bypassActor = actor
	}
}

// RequireAuth verifies the bearer token and attaches the resulting actor
// to the request context. Requests without a bearer token are rejected
// before any verification work.
func RequireAuth(verifier TokenVerifier, logger *slog.Logger, opts ...AuthOption) func(http.Handler) http.Handler {
	options := &authOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if options.bypassActor != nil {
				ctx = WithActor(ctx, options.bypassActor)
				requestcontext.PublishIdentity(ctx, options.bypassActor.ID, options.bypassActor.Email, options.bypassActor.Roles)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"correlation_id", requestcontext.CorrelationID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, r, apierrors.New(apierrors.CodeAuthTokenMissing, "authorization token is required"))
				return
			}

			actor, err := verifier.VerifyToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - token rejected",
					"correlation_id", requestcontext.CorrelationID(ctx),
					"path", r.URL.Path,
					"error", err,
				)
				httputil.WriteError(w, r, err)
				return
			}

			ctx = WithActor(ctx, actor)
			requestcontext.PublishIdentity(ctx, actor.ID, actor.Email, actor.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
