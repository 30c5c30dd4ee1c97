// Package rls binds per-request tenant claims to pooled database
// connections so Postgres row-level security policies can evaluate them.
package rls

import (
	"encoding/json"
	"fmt"

	"quoin/internal/identity"
	id "quoin/pkg/domain"
)

// SessionClaims is the JSON document written to the app.claims session
// variable. The row-level security policies read tenant_id from it; the
// remaining fields exist for in-database auditing and debugging.
type SessionClaims struct {
	TenantID      string   `json:"tenant_id"`
	UserID        string   `json:"user_id"`
	Role          string   `json:"role,omitempty"`
	Roles         []string `json:"roles,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// NewSessionClaims builds the claims document for an authenticated actor
// acting on a resolved tenant.
func NewSessionClaims(actor *identity.Actor, tenantID id.TenantID, correlationID string) SessionClaims {
	claims := SessionClaims{
		TenantID:      tenantID.String(),
		CorrelationID: correlationID,
	}
	if actor != nil {
		claims.UserID = actor.ID.String()
		claims.Role = actor.PrimaryRole()
		claims.Roles = actor.Roles
	}
	return claims
}

// Validate rejects claims that would bind an unscoped session.
func (c SessionClaims) Validate() error {
	if c.TenantID == "" {
		return fmt.Errorf("session claims require a tenant id")
	}
	if c.UserID == "" {
		return fmt.Errorf("session claims require a user id")
	}
	return nil
}

// JSON renders the claims as the set_config payload.
func (c SessionClaims) JSON() (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal session claims: %w", err)
	}
	return string(raw), nil
}
