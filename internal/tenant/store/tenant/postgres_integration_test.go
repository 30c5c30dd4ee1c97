//go:build integration

package tenant_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quoin/internal/tenant/models"
	"quoin/internal/tenant/store/tenant"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
	"quoin/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *tenant.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = tenant.NewPostgres(s.postgres.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "bids", "estimates", "tenants")
	s.Require().NoError(err)
}

// newStoredTenant builds a tenant row directly so tests can exercise the
// store with slugs the model constructor would normalize away.
func newStoredTenant(slug string) *models.Tenant {
	now := time.Now().UTC()
	return &models.Tenant{
		ID:        id.TenantID(uuid.New()),
		Slug:      slug,
		Name:      "Tenant " + slug,
		Status:    models.TenantStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TestConcurrentUniqueSlugViolation verifies that concurrent creation
// attempts with the same slug result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentUniqueSlugViolation() {
	ctx := context.Background()
	slug := "concurrent-" + uuid.NewString()
	const goroutines = 50

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			t := newStoredTenant(slug)
			err := s.store.CreateIfSlugAvailable(ctx, t)
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrConflict) {
				conflictCount.Add(1)
			}
		}()
	}

	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict error")

	found, err := s.store.FindBySlug(ctx, slug)
	s.Require().NoError(err)
	s.Equal(slug, found.Slug)
}

// TestCaseInsensitiveSlugUniqueness verifies slugs are unique regardless of
// case and that lookups match case-insensitively.
func (s *PostgresStoreSuite) TestCaseInsensitiveSlugUniqueness() {
	ctx := context.Background()
	slug := "casetest-" + uuid.NewString()

	first := newStoredTenant(slug)
	s.Require().NoError(s.store.CreateIfSlugAvailable(ctx, first))

	variants := []string{
		strings.ToUpper(slug),
		strings.ToTitle(slug[:1]) + slug[1:],
	}

	for _, variant := range variants {
		dup := newStoredTenant(variant)
		err := s.store.CreateIfSlugAvailable(ctx, dup)
		s.ErrorIs(err, sentinel.ErrConflict, "slug %q should conflict with %q", variant, slug)
	}

	for _, variant := range append(variants, slug) {
		found, err := s.store.FindBySlug(ctx, variant)
		s.Require().NoError(err)
		s.Equal(first.ID, found.ID, "FindBySlug(%q) should find the same tenant", variant)
	}
}

// TestSuspensionRoundTrip verifies a status flip persists and is visible
// to subsequent reads.
func (s *PostgresStoreSuite) TestSuspensionRoundTrip() {
	ctx := context.Background()

	t := newStoredTenant("suspend-" + uuid.NewString())
	s.Require().NoError(s.store.CreateIfSlugAvailable(ctx, t))

	s.Require().NoError(t.Suspend(time.Now().UTC()))
	s.Require().NoError(s.store.Update(ctx, t))

	found, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(models.TenantStatusSuspended, found.Status)
	s.False(found.IsActive())

	s.Require().NoError(found.Reactivate(time.Now().UTC()))
	s.Require().NoError(s.store.Update(ctx, found))

	found, err = s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.True(found.IsActive())
}

// TestConcurrentUpdateSameTenant verifies concurrent updates to one tenant
// all succeed with last write winning.
func (s *PostgresStoreSuite) TestConcurrentUpdateSameTenant() {
	ctx := context.Background()

	t := newStoredTenant("update-race-" + uuid.NewString())
	s.Require().NoError(s.store.CreateIfSlugAvailable(ctx, t))

	const goroutines = 50
	var wg sync.WaitGroup
	var updateErrors atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			updated := *t
			updated.UpdatedAt = time.Now().UTC().Add(time.Duration(idx) * time.Millisecond)
			if err := s.store.Update(ctx, &updated); err != nil {
				updateErrors.Add(1)
			}
		}(i)
	}

	wg.Wait()

	s.Equal(int32(0), updateErrors.Load(), "all updates should succeed")

	found, err := s.store.FindByID(ctx, t.ID)
	s.Require().NoError(err)
	s.Equal(t.Slug, found.Slug)
}

// TestNotFoundError verifies sentinel errors for missing tenants.
func (s *PostgresStoreSuite) TestNotFoundError() {
	ctx := context.Background()

	_, err := s.store.FindByID(ctx, id.TenantID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindBySlug(ctx, "ghost-"+uuid.NewString())
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.Update(ctx, newStoredTenant("ghost-"+uuid.NewString()))
	s.ErrorIs(err, sentinel.ErrNotFound)
}
