//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer wraps a testcontainers Postgres instance with the quoin
// schema applied.
//
// Pool connects as the database owner and bypasses row-level security; use
// it for fixtures and truncation. AppPool connects as the quoin_app role
// and is subject to the tenant isolation policies, so RLS-sensitive tests
// must go through it. DB is a database/sql handle for stores built on
// lib/pq.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	AppDSN    string
	Pool      *pgxpool.Pool
	AppPool   *pgxpool.Pool
	DB        *sql.DB
}

// NewPostgresContainer starts a Postgres container and applies db/schema.sql.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("quoin_test"),
		tcpostgres.WithUsername("quoin"),
		tcpostgres.WithPassword("quoin"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to create pgx pool: %v", err)
	}

	if err := applySchema(ctx, pool); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	appDSN, err := asAppRole(dsn)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to derive app role DSN: %v", err)
	}

	appPool, err := pgxpool.New(ctx, appDSN)
	if err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to create app pgx pool: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		appPool.Close()
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open database/sql handle: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		appPool.Close()
		pool.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping via database/sql: %v", err)
	}

	// The singleton Manager shares this container across suites, so no
	// t.Cleanup here. Ryuk handles teardown.
	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		AppDSN:    appDSN,
		Pool:      pool,
		AppPool:   appPool,
		DB:        db,
	}
}

// TruncateTables empties the named tables. Use between tests for isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.Pool.Exec(ctx, "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	path, err := schemaPath()
	if err != nil {
		return err
	}
	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}
	return nil
}

// schemaPath resolves db/schema.sql relative to this source file so tests
// work regardless of the package they run from.
func schemaPath() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("cannot locate containers package source")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "db", "schema.sql"), nil
}

// asAppRole rewrites the DSN to connect as the RLS-constrained quoin_app
// role created by the schema.
func asAppRole(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	u.User = url.UserPassword("quoin_app", "quoin_app")
	return u.String(), nil
}
