// Package identity verifies request identity and carries the resulting
// actor through the request context.
package identity

import (
	"context"

	id "quoin/pkg/domain"
)

// WildcardCapability grants every capability when present in an actor's
// permission set.
const WildcardCapability = "*"

// Actor is the verified identity attached to a request. It is built once
// by the verifier and treated as immutable afterwards; downstream stages
// read it, never mutate it.
type Actor struct {
	ID          id.UserID
	Email       string
	TenantID    id.TenantID // zero when the token carried no tenant claim
	Roles       []string
	Permissions []string
}

// Can reports whether the actor holds the named capability.
// The wildcard grant covers everything.
func (a *Actor) Can(capability string) bool {
	if a == nil {
		return false
	}
	for _, p := range a.Permissions {
		if p == capability || p == WildcardCapability {
			return true
		}
	}
	return false
}

// HasRole reports whether the actor carries the named role.
func (a *Actor) HasRole(role string) bool {
	if a == nil {
		return false
	}
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PrimaryRole returns the first role for session claim payloads,
// or "" for roleless actors.
func (a *Actor) PrimaryRole() string {
	if a == nil || len(a.Roles) == 0 {
		return ""
	}
	return a.Roles[0]
}

type actorKey struct{}

// ContextKeyActor is exported for tests that build contexts directly.
var ContextKeyActor = actorKey{}

// WithActor injects the verified actor into the context.
func WithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, ContextKeyActor, actor)
}

// FromContext retrieves the verified actor, if any.
func FromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(ContextKeyActor).(*Actor)
	return actor, ok && actor != nil
}
