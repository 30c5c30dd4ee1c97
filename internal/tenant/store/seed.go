package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"quoin/internal/tenant/models"
	tenantstore "quoin/internal/tenant/store/tenant"
	id "quoin/pkg/domain"
)

// SeedDevTenants populates an in-memory store with a known active and a
// known suspended tenant so dev and test wiring has something to resolve
// against before any real provisioning exists.
func SeedDevTenants(ts *tenantstore.InMemory) (active, suspended *models.Tenant) {
	ctx := context.Background()
	now := time.Now().UTC()

	active, _ = models.NewTenant(id.TenantID(uuid.New()), "acme-builds", "Acme Builds Inc", now)
	_ = ts.CreateIfSlugAvailable(ctx, active)

	suspended, _ = models.NewTenant(id.TenantID(uuid.New()), "paused-construction", "Paused Construction LLC", now)
	_ = suspended.Suspend(now)
	_ = ts.CreateIfSlugAvailable(ctx, suspended)

	return active, suspended
}
