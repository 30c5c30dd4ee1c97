package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quoin/internal/platform/postgres"
	"quoin/internal/tenant/models"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
)

// PostgresStore persists tenants in the tenants table.
//
// Tenant rows are platform metadata read during request resolution, before
// session claims exist, so lookups run on the shared pool and the table
// carries no row-level security policy.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const tenantColumns = `id, slug, name, status, created_at, updated_at`

func (s *PostgresStore) scanTenant(row pgx.Row) (*models.Tenant, error) {
	var t models.Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, classify(err, "scan tenant")
	}
	return &t, nil
}

// CreateIfSlugAvailable inserts the tenant unless the slug is taken.
// Slug uniqueness is enforced by a unique index on lower(slug).
func (s *PostgresStore) CreateIfSlugAvailable(ctx context.Context, t *models.Tenant) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`,
		t.ID, t.Slug, t.Name, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if postgres.IsDuplicateKey(err) {
			return sentinel.ErrConflict
		}
		return classify(err, "insert tenant")
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, tenantID)
	return s.scanTenant(row)
}

func (s *PostgresStore) FindBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE lower(slug) = lower($1)`, slug)
	return s.scanTenant(row)
}

func (s *PostgresStore) Update(ctx context.Context, t *models.Tenant) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE tenants
		SET slug = $2, name = $3, status = $4, updated_at = $5
		WHERE id = $1`,
		t.ID, t.Slug, t.Name, t.Status, t.UpdatedAt,
	)
	if err != nil {
		return classify(err, "update tenant")
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// classify wraps driver errors; connectivity failures become
// sentinel.ErrUnavailable so the boundary reports DB_UNAVAILABLE.
func classify(err error, op string) error {
	if postgres.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
