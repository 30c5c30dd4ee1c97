// Package estimates is the reference business surface: read-only access
// to a tenant's estimates and bids, always through the request's guarded
// database session.
package estimates

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"quoin/internal/platform/postgres"
	"quoin/internal/rls"
	id "quoin/pkg/domain"
	"quoin/pkg/platform/sentinel"
)

// DefaultListLimit bounds list queries when the caller does not pick a
// limit.
const DefaultListLimit = 100

// Store reads estimates and bids through the request's guarded session.
//
// It holds no pool of its own: every query runs on the claims-bound
// connection pulled from the context, so a request that never acquired a
// session cannot reach tenant data at all. The queries carry no tenant_id
// predicate either; visibility is enforced entirely by the row-level
// security policies reading app.claims.
type Store struct{}

func NewStore() *Store {
	return &Store{}
}

const estimateColumns = `id, tenant_id, title, description, amount_cents, status, created_at, updated_at`

const bidColumns = `id, tenant_id, estimate_id, contractor_name, amount_cents, status, submitted_at`

// ListEstimates returns the session tenant's newest estimates.
func (s *Store) ListEstimates(ctx context.Context, limit int) ([]Estimate, error) {
	session, err := rls.SessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := session.Query(ctx,
		`SELECT `+estimateColumns+` FROM estimates ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err, "list estimates")
	}
	defer rows.Close()

	var out []Estimate
	for rows.Next() {
		var e Estimate
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Title, &e.Description,
			&e.AmountCents, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, classify(err, "scan estimate")
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list estimates")
	}
	return out, nil
}

// GetEstimate looks up one estimate by ID. An estimate belonging to
// another tenant is indistinguishable from one that does not exist: the
// policy hides the row and the lookup reports not found.
func (s *Store) GetEstimate(ctx context.Context, estimateID id.EstimateID) (*Estimate, error) {
	session, err := rls.SessionFrom(ctx)
	if err != nil {
		return nil, err
	}

	var e Estimate
	err = session.QueryRow(ctx,
		`SELECT `+estimateColumns+` FROM estimates WHERE id = $1`, estimateID).
		Scan(&e.ID, &e.TenantID, &e.Title, &e.Description,
			&e.AmountCents, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, classify(err, "get estimate")
	}
	return &e, nil
}

// ListBids returns the session tenant's newest bids, optionally narrowed
// to a single estimate.
func (s *Store) ListBids(ctx context.Context, estimateID id.EstimateID, limit int) ([]Bid, error) {
	session, err := rls.SessionFrom(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + bidColumns + ` FROM bids`
	args := make([]any, 0, 2)
	if !estimateID.IsNil() {
		query += ` WHERE estimate_id = $1`
		args = append(args, estimateID)
	}
	query += fmt.Sprintf(` ORDER BY submitted_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := session.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "list bids")
	}
	defer rows.Close()

	var out []Bid
	for rows.Next() {
		var b Bid
		if err := rows.Scan(&b.ID, &b.TenantID, &b.EstimateID, &b.ContractorName,
			&b.AmountCents, &b.Status, &b.SubmittedAt); err != nil {
			return nil, classify(err, "scan bid")
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "list bids")
	}
	return out, nil
}

// classify wraps driver errors; connectivity failures become
// sentinel.ErrUnavailable so the boundary reports DB_UNAVAILABLE.
func classify(err error, op string) error {
	if postgres.IsUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
