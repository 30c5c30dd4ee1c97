//go:build integration

package estimates_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"quoin/internal/estimates"
	"quoin/internal/platform/config"
	"quoin/internal/rls"
	"quoin/pkg/apierrors"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
	"quoin/pkg/testutil/containers"
)

// EstimateStoreSuite proves the store reads only what the session's tenant
// policies expose: no tenant_id predicates in the SQL, yet every query is
// scoped.
type EstimateStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	manager  *rls.Manager
	store    *estimates.Store

	tenantA id.TenantID
	tenantB id.TenantID
	estA1   id.EstimateID
	estA2   id.EstimateID
	estB    id.EstimateID
}

func TestEstimateStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(EstimateStoreSuite))
}

func (s *EstimateStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.manager = rls.NewManager(rls.FromPgxPool(s.postgres.AppPool), config.RLSConfig{
		HealthAttempts:  3,
		RetryBase:       10 * time.Millisecond,
		RetryMax:        50 * time.Millisecond,
		ClaimAttempts:   2,
		ClaimRetryDelay: 10 * time.Millisecond,
		FailMode:        config.FailModeClosed,
	})
	s.store = estimates.NewStore()
}

func (s *EstimateStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "bids", "estimates", "tenants"))

	s.tenantA = id.TenantID(uuid.New())
	s.tenantB = id.TenantID(uuid.New())
	s.estA1 = id.EstimateID(uuid.New())
	s.estA2 = id.EstimateID(uuid.New())
	s.estB = id.EstimateID(uuid.New())

	// Fixtures go in through the owner pool, which bypasses the policies.
	for _, row := range []struct {
		tenantID id.TenantID
		slug     string
	}{
		{s.tenantA, "alpha-construction"},
		{s.tenantB, "beta-builders"},
	} {
		_, err := s.postgres.Pool.Exec(ctx,
			`INSERT INTO tenants (id, slug, name) VALUES ($1, $2, $2)`, row.tenantID, row.slug)
		s.Require().NoError(err)
	}

	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, row := range []struct {
		estimateID id.EstimateID
		tenantID   id.TenantID
		title      string
		amount     int64
	}{
		{s.estA1, s.tenantA, "Warehouse reroof", 4_200_000},
		{s.estA2, s.tenantA, "Loading dock extension", 1_750_000},
		{s.estB, s.tenantB, "Retail unit fit-out", 980_000},
	} {
		_, err := s.postgres.Pool.Exec(ctx, `
			INSERT INTO estimates (id, tenant_id, title, description, amount_cents, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 'open', $6, $6)`,
			row.estimateID, row.tenantID, row.title, "seeded", row.amount, base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(err)
	}

	for i, row := range []struct {
		tenantID   id.TenantID
		estimateID id.EstimateID
		contractor string
	}{
		{s.tenantA, s.estA1, "Mercer Roofing"},
		{s.tenantA, s.estA2, "Hartwell Civil"},
		{s.tenantB, s.estB, "Quayside Interiors"},
	} {
		_, err := s.postgres.Pool.Exec(ctx, `
			INSERT INTO bids (id, tenant_id, estimate_id, contractor_name, amount_cents, status, submitted_at)
			VALUES ($1, $2, $3, $4, $5, 'submitted', $6)`,
			uuid.New(), row.tenantID, row.estimateID, row.contractor, int64(500_000+i), base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(err)
	}
}

// sessionContext acquires a claims-bound session for the tenant and returns
// a context the store can read from, plus the release func.
func (s *EstimateStoreSuite) sessionContext(tenantID id.TenantID) (context.Context, func()) {
	ctx := context.Background()
	session, err := s.manager.AcquireSession(ctx, rls.SessionClaims{
		TenantID:      tenantID.String(),
		UserID:        uuid.NewString(),
		Role:          "estimator",
		CorrelationID: "corr-est-" + tenantID.String()[:8],
	})
	s.Require().NoError(err)
	return rls.WithSession(ctx, session), func() { session.Release(ctx) }
}

func (s *EstimateStoreSuite) TestListScopedToSessionTenant() {
	ctxA, releaseA := s.sessionContext(s.tenantA)
	defer releaseA()

	got, err := s.store.ListEstimates(ctxA, 0)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("Loading dock extension", got[0].Title, "newest first")
	s.Equal("Warehouse reroof", got[1].Title)
	for _, e := range got {
		s.Equal(s.tenantA, e.TenantID)
	}

	ctxB, releaseB := s.sessionContext(s.tenantB)
	defer releaseB()

	got, err = s.store.ListEstimates(ctxB, 0)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("Retail unit fit-out", got[0].Title)
}

func (s *EstimateStoreSuite) TestGetRoundTripsFields() {
	ctx, release := s.sessionContext(s.tenantA)
	defer release()

	got, err := s.store.GetEstimate(ctx, s.estA1)
	s.Require().NoError(err)
	s.Equal(s.estA1, got.ID)
	s.Equal(s.tenantA, got.TenantID)
	s.Equal("Warehouse reroof", got.Title)
	s.Equal("seeded", got.Description)
	s.Equal(int64(4_200_000), got.AmountCents)
	s.Equal(estimates.EstimateStatusOpen, got.Status)
	s.False(got.CreatedAt.IsZero())
}

func (s *EstimateStoreSuite) TestGetHidesOtherTenants() {
	ctx, release := s.sessionContext(s.tenantA)
	defer release()

	// Tenant B's estimate must look exactly like a missing row.
	_, err := s.store.GetEstimate(ctx, s.estB)
	s.Require().Error(err)
	s.True(errors.Is(err, sentinel.ErrNotFound))
}

func (s *EstimateStoreSuite) TestListBids() {
	ctx, release := s.sessionContext(s.tenantA)
	defer release()

	got, err := s.store.ListBids(ctx, id.EstimateID{}, 0)
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("Hartwell Civil", got[0].ContractorName, "newest first")

	got, err = s.store.ListBids(ctx, s.estA1, 0)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("Mercer Roofing", got[0].ContractorName)
	s.Equal(s.estA1, got[0].EstimateID)

	// Filtering by another tenant's estimate yields nothing rather than
	// leaking.
	got, err = s.store.ListBids(ctx, s.estB, 0)
	s.Require().NoError(err)
	s.Empty(got)
}

func (s *EstimateStoreSuite) TestListHonorsLimit() {
	ctx, release := s.sessionContext(s.tenantA)
	defer release()

	got, err := s.store.ListEstimates(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("Loading dock extension", got[0].Title)
}

func (s *EstimateStoreSuite) TestNoSessionFailsClosed() {
	_, err := s.store.ListEstimates(context.Background(), 0)
	s.Require().Error(err)

	var apiErr *apierrors.Error
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(apierrors.CodeDBUnavailable, apiErr.Code)
}
