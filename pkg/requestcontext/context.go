// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	tenantID := requestcontext.TenantID(ctx)
//	correlationID := requestcontext.CorrelationID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithTenantID(ctx, tenantID)
//	ctx = requestcontext.WithCorrelationID(ctx, correlationID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "agent/1.0")
package requestcontext

import (
	"context"
	"sync"
	"time"

	id "quoin/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	correlationIDKey struct{}
	tenantIDKey      struct{}
	claimsStateKey   struct{}
	clientIPKey      struct{}
	userAgentKey     struct{}
	requestTimeKey   struct{}
	observationKey   struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyCorrelationID = correlationIDKey{}
	ContextKeyTenantID      = tenantIDKey{}
	ContextKeyClaimsState   = claimsStateKey{}
	ContextKeyClientIP      = clientIPKey{}
	ContextKeyUserAgent     = userAgentKey{}
	ContextKeyRequestTime   = requestTimeKey{}
	ContextKeyObservation   = observationKey{}
)

// -----------------------------------------------------------------------------
// Correlation
// -----------------------------------------------------------------------------

// CorrelationID retrieves the request correlation ID from the context.
// Returns "" if not set.
func CorrelationID(ctx context.Context) string {
	if cid, ok := ctx.Value(ContextKeyCorrelationID).(string); ok {
		return cid
	}
	return ""
}

// WithCorrelationID injects a correlation ID into the context.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, ContextKeyCorrelationID, correlationID)
}

// -----------------------------------------------------------------------------
// Tenant context
// -----------------------------------------------------------------------------

// TenantID retrieves the resolved tenant ID from the context.
// Returns the zero value (nil UUID) if no tenant was resolved.
func TenantID(ctx context.Context) id.TenantID {
	if tenantID, ok := ctx.Value(ContextKeyTenantID).(id.TenantID); ok {
		return tenantID
	}
	return id.TenantID{}
}

// WithTenantID injects a resolved tenant ID into the context.
func WithTenantID(ctx context.Context, tenantID id.TenantID) context.Context {
	return context.WithValue(ctx, ContextKeyTenantID, tenantID)
}

// -----------------------------------------------------------------------------
// Session claims state
// -----------------------------------------------------------------------------

// claimsState is a request-scoped guard shared by pointer so middleware can
// flip it without rebuilding the context chain. Claims must be applied at
// most once per request.
type claimsState struct {
	mu       sync.Mutex
	applied  bool
	degraded bool
}

// WithClaimsState seeds the request with a fresh claims guard. Installed
// once at the top of the middleware chain.
func WithClaimsState(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeyClaimsState, &claimsState{})
}

// ClaimsApplied reports whether session claims were already applied for
// this request. Returns false when no guard is present (non-HTTP contexts).
func ClaimsApplied(ctx context.Context) bool {
	if st, ok := ctx.Value(ContextKeyClaimsState).(*claimsState); ok {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.applied
	}
	return false
}

// MarkClaimsApplied flips the guard false->true. Returns false if claims
// were already applied or no guard is present, so callers can enforce the
// at-most-once invariant.
func MarkClaimsApplied(ctx context.Context) bool {
	if st, ok := ctx.Value(ContextKeyClaimsState).(*claimsState); ok {
		st.mu.Lock()
		defer st.mu.Unlock()
		if st.applied {
			return false
		}
		st.applied = true
		return true
	}
	return false
}

// SessionDegraded reports whether the request is running without a guarded
// database session after claim application was skipped in degraded mode.
func SessionDegraded(ctx context.Context) bool {
	if st, ok := ctx.Value(ContextKeyClaimsState).(*claimsState); ok {
		st.mu.Lock()
		defer st.mu.Unlock()
		return st.degraded
	}
	return false
}

// MarkSessionDegraded flags the request as degraded. No-op without a guard.
func MarkSessionDegraded(ctx context.Context) {
	if st, ok := ctx.Value(ContextKeyClaimsState).(*claimsState); ok {
		st.mu.Lock()
		defer st.mu.Unlock()
		st.degraded = true
	}
}

// -----------------------------------------------------------------------------
// Observed identity
// -----------------------------------------------------------------------------

// observation carries resolved identity facts back up the middleware
// chain by pointer, like claimsState. Audit capture mounts ahead of
// authentication so rejected requests are still recorded; the verifier
// and tenant resolver publish what they resolved deeper in the chain,
// and capture reads it after the handler returns.
type observation struct {
	mu       sync.Mutex
	userID   id.UserID
	email    string
	roles    []string
	tenantID id.TenantID
}

// WithObservation seeds the request with an empty observation slot.
// Installed by middleware that needs to see downstream resolution.
func WithObservation(ctx context.Context) context.Context {
	return context.WithValue(ctx, ContextKeyObservation, &observation{})
}

// PublishIdentity records the verified actor in the observation slot.
// No-op when no slot is present.
func PublishIdentity(ctx context.Context, userID id.UserID, email string, roles []string) {
	if obs, ok := ctx.Value(ContextKeyObservation).(*observation); ok {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		obs.userID = userID
		obs.email = email
		obs.roles = append([]string(nil), roles...)
	}
}

// PublishTenant records the resolved tenant in the observation slot.
// No-op when no slot is present.
func PublishTenant(ctx context.Context, tenantID id.TenantID) {
	if obs, ok := ctx.Value(ContextKeyObservation).(*observation); ok {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		obs.tenantID = tenantID
	}
}

// ObservedIdentity returns the published actor ID, email and roles, zero
// values when no identity was published for this request.
func ObservedIdentity(ctx context.Context) (id.UserID, string, []string) {
	if obs, ok := ctx.Value(ContextKeyObservation).(*observation); ok {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.userID, obs.email, append([]string(nil), obs.roles...)
	}
	return id.UserID{}, "", nil
}

// ObservedTenant returns the published tenant ID, zero when unresolved.
func ObservedTenant(ctx context.Context) id.TenantID {
	if obs, ok := ctx.Value(ContextKeyObservation).(*observation); ok {
		obs.mu.Lock()
		defer obs.mu.Unlock()
		return obs.tenantID
	}
	return id.TenantID{}
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
