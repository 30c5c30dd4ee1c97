package rls

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"quoin/internal/platform/config"
	rlsmetrics "quoin/internal/rls/metrics"
	"quoin/pkg/apierrors"
)

// Binding outcomes recorded in metrics.
const (
	outcomeApplied  = "applied"
	outcomeFailed   = "failed"
	outcomeSkipped  = "skipped"
	outcomeDegraded = "degraded"
)

const (
	setClaimsSQL   = "SELECT set_config('app.claims', $1, false)"
	resetClaimsSQL = "SELECT set_config('app.claims', '', false)"
)

// Pool is the subset of pgxpool.Pool the manager needs.
type Pool interface {
	Ping(ctx context.Context) error
	Acquire(ctx context.Context) (Conn, error)
}

// Conn is a pooled connection the manager can execute on and either return
// to the pool or discard.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
	Destroy()
}

type pgxPool struct {
	pool *pgxpool.Pool
}

// FromPgxPool adapts a pgx pool to the manager's Pool contract.
func FromPgxPool(pool *pgxpool.Pool) Pool {
	return pgxPool{pool: pool}
}

func (p pgxPool) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p pgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return pgxConn{conn: conn}, nil
}

type pgxConn struct {
	conn *pgxpool.Conn
}

func (c pgxConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return c.conn.Exec(ctx, sql, args...)
}

func (c pgxConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

func (c pgxConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return c.conn.QueryRow(ctx, sql, args...)
}

func (c pgxConn) Release() {
	c.conn.Release()
}

// Destroy closes the underlying connection before releasing so the pool
// discards it instead of handing it to another request.
func (c pgxConn) Destroy() {
	_ = c.conn.Conn().Close(context.Background())
	c.conn.Release()
}

// Manager pins a database connection per request and binds the request's
// tenant claims to it. Every statement issued through the returned session
// is evaluated under the row-level security policies for that tenant.
type Manager struct {
	pool    Pool
	cfg     config.RLSConfig
	logger  *slog.Logger
	metrics *rlsmetrics.Metrics
}

type managerConfig struct {
	logger  *slog.Logger
	metrics *rlsmetrics.Metrics
}

// Option configures the manager.
type Option func(*managerConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *managerConfig) { c.logger = logger }
}

func WithMetrics(m *rlsmetrics.Metrics) Option {
	return func(c *managerConfig) { c.metrics = m }
}

func NewManager(pool Pool, cfg config.RLSConfig, opts ...Option) *Manager {
	mc := &managerConfig{}
	for _, opt := range opts {
		opt(mc)
	}
	logger := mc.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		pool:    pool,
		cfg:     cfg,
		logger:  logger,
		metrics: mc.metrics,
	}
}

// AcquireSession health-checks the database, pins a connection and binds
// the claims to it. The returned session must be released exactly once.
//
// Failures surface as DB_UNAVAILABLE: a request that cannot get a guarded
// session must never fall through to an unscoped connection.
func (m *Manager) AcquireSession(ctx context.Context, claims SessionClaims) (*Session, error) {
	start := time.Now()
	defer m.metrics.ObserveAcquire(start)

	if err := claims.Validate(); err != nil {
		m.metrics.IncrementSession(outcomeFailed)
		return nil, apierrors.Wrap(err, apierrors.CodeInternal, "invalid session claims")
	}
	payload, err := claims.JSON()
	if err != nil {
		m.metrics.IncrementSession(outcomeFailed)
		return nil, apierrors.Wrap(err, apierrors.CodeInternal, "invalid session claims")
	}

	if err := m.waitHealthy(ctx); err != nil {
		m.metrics.IncrementSession(outcomeFailed)
		return nil, apierrors.Wrap(err, apierrors.CodeDBUnavailable, "database unavailable")
	}

	conn, err := m.pool.Acquire(ctx)
	if err != nil {
		m.metrics.IncrementSession(outcomeFailed)
		return nil, apierrors.Wrap(err, apierrors.CodeDBUnavailable, "database unavailable")
	}

	if err := m.bindClaims(ctx, conn, payload); err != nil {
		conn.Release()
		m.metrics.IncrementSession(outcomeFailed)
		return nil, apierrors.Wrap(err, apierrors.CodeDBUnavailable, "database unavailable")
	}

	m.metrics.IncrementSession(outcomeApplied)
	return &Session{
		conn:    conn,
		tenant:  claims.TenantID,
		logger:  m.logger,
		metrics: m.metrics,
	}, nil
}

// waitHealthy probes the pool before acquisition, retrying with doubling
// backoff capped at RetryMax. Context cancellation cuts the wait short.
func (m *Manager) waitHealthy(ctx context.Context) error {
	delay := m.cfg.RetryBase
	var lastErr error
	for attempt := 1; attempt <= m.cfg.HealthAttempts; attempt++ {
		lastErr = m.pool.Ping(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == m.cfg.HealthAttempts {
			break
		}
		m.metrics.IncrementHealthRetry()
		m.logger.WarnContext(ctx, "database health probe failed",
			"attempt", attempt,
			"retry_in", delay.String(),
			"error", lastErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, m.cfg.RetryMax)
	}
	return lastErr
}

// bindClaims sets app.claims on the pinned connection, retrying transient
// failures a bounded number of times.
func (m *Manager) bindClaims(ctx context.Context, conn Conn, payload string) error {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.ClaimAttempts; attempt++ {
		_, lastErr = conn.Exec(ctx, setClaimsSQL, payload)
		if lastErr == nil {
			return nil
		}
		if attempt == m.cfg.ClaimAttempts {
			break
		}
		m.logger.WarnContext(ctx, "claims binding failed",
			"attempt", attempt,
			"error", lastErr,
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.ClaimRetryDelay):
		}
	}
	return lastErr
}

// Session is a pinned connection with tenant claims bound. It is valid for
// the lifetime of one request.
type Session struct {
	conn     Conn
	tenant   string
	logger   *slog.Logger
	metrics  *rlsmetrics.Metrics
	released atomic.Bool
}

// TenantID returns the tenant the session is scoped to.
func (s *Session) TenantID() string {
	return s.tenant
}

func (s *Session) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return s.conn.Exec(ctx, sql, args...)
}

func (s *Session) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.conn.Query(ctx, sql, args...)
}

func (s *Session) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return s.conn.QueryRow(ctx, sql, args...)
}

// Release resets app.claims and returns the connection to the pool. If the
// reset fails the connection is destroyed: a claims-bearing connection must
// never be handed to another request. Safe to call more than once.
func (s *Session) Release(ctx context.Context) {
	if !s.released.CompareAndSwap(false, true) {
		return
	}
	if _, err := s.conn.Exec(ctx, resetClaimsSQL); err != nil {
		s.logger.WarnContext(ctx, "claims reset failed, destroying connection",
			"tenant_id", s.tenant,
			"error", err,
		)
		s.metrics.IncrementResetFailure()
		s.conn.Destroy()
		return
	}
	s.conn.Release()
}
