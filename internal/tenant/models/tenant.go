package models

import (
	"regexp"
	"time"

	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
)

// TenantStatus is the lifecycle state of a tenant organization.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// slugPattern: lowercase letters, digits and single hyphens, 1-64 chars.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Tenant is the aggregate root for a tenant organization.
//
// Invariants:
//   - Slug is non-empty, URL-safe and at most 64 characters
//   - Name is non-empty and at most 128 characters
//   - Status is either active or suspended
//   - CreatedAt is immutable after construction
//
// # Suspension Invariant
//
// A suspended tenant still RESOLVES (the resolver can name it in errors
// and audit entries) but every tenant-scoped request against it MUST fail
// with an authorization error. Enforcement lives in the resolver rather
// than in row deletion, so reactivation is a single status flip and the
// audit trail keeps pointing at a real tenant record.
type Tenant struct {
	ID        id.TenantID  `json:"id"`
	Slug      string       `json:"slug"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// Suspend transitions the tenant to suspended status.
// Returns an error if the tenant is already suspended.
func (t *Tenant) Suspend(now time.Time) error {
	if t.Status == TenantStatusSuspended {
		return apierrors.New(apierrors.CodeConflict, "tenant is already suspended")
	}
	t.Status = TenantStatusSuspended
	t.UpdatedAt = now
	return nil
}

// Reactivate transitions the tenant back to active status.
// Returns an error if the tenant is already active.
func (t *Tenant) Reactivate(now time.Time) error {
	if t.Status == TenantStatusActive {
		return apierrors.New(apierrors.CodeConflict, "tenant is already active")
	}
	t.Status = TenantStatusActive
	t.UpdatedAt = now
	return nil
}

// NewTenant constructs an active tenant, enforcing the model invariants.
func NewTenant(tenantID id.TenantID, slug, name string, now time.Time) (*Tenant, error) {
	if slug == "" {
		return nil, apierrors.New(apierrors.CodeValidation, "tenant slug cannot be empty")
	}
	if len(slug) > 64 {
		return nil, apierrors.New(apierrors.CodeValidation, "tenant slug must be 64 characters or less")
	}
	if !slugPattern.MatchString(slug) {
		return nil, apierrors.New(apierrors.CodeValidation, "tenant slug must be lowercase letters, digits and hyphens")
	}
	if name == "" {
		return nil, apierrors.New(apierrors.CodeValidation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, apierrors.New(apierrors.CodeValidation, "tenant name must be 128 characters or less")
	}
	return &Tenant{
		ID:        tenantID,
		Slug:      slug,
		Name:      name,
		Status:    TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
