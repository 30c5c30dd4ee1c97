// Command server runs the quoin API. main assembles configuration,
// stores and the audit pipeline, hands them to the router, and owns the
// process lifecycle; business behavior lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"quoin/internal/audit"
	auditmetrics "quoin/internal/audit/metrics"
	"quoin/internal/audit/publisher/kafka"
	memorystore "quoin/internal/audit/store/memory"
	auditpg "quoin/internal/audit/store/postgres"
	"quoin/internal/estimates"
	"quoin/internal/identity"
	"quoin/internal/platform/config"
	"quoin/internal/platform/httpserver"
	"quoin/internal/platform/logger"
	"quoin/internal/platform/metrics"
	"quoin/internal/platform/postgres"
	redisplatform "quoin/internal/platform/redis"
	"quoin/internal/rls"
	rlsmetrics "quoin/internal/rls/metrics"
	"quoin/internal/tenant"
	tenantmetrics "quoin/internal/tenant/metrics"
	tenantstore "quoin/internal/tenant/store/tenant"
	httptransport "quoin/internal/transport/http"
)

// Token issuer/audience are fixed per deployment; tokens minted elsewhere
// must carry the same pair to verify.
const (
	tokenIssuer   = "quoin"
	tokenAudience = "quoin-api"
)

func main() {
	// Absent .env files are fine; real deployments inject the environment.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		log.Error("configuration rejected", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// The audit trail writes through database/sql so a separate DSN can
	// point it at a dedicated compliance database.
	auditDB, err := sql.Open("postgres", cfg.AuditDatabaseURL())
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer auditDB.Close()
	if err := auditDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping audit database: %w", err)
	}

	tm := tenantmetrics.New()
	var tenants tenantstore.Store = tenantstore.NewPostgres(pool)
	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		tenants = tenantstore.NewCached(tenants, redisClient, cfg.Redis.TenantCacheTTL, log, tm)
		log.Info("tenant cache enabled", "ttl", cfg.Redis.TenantCacheTTL)
	}

	// Audit fan-out: the memory store always runs and serves the admin
	// view; postgres is the durable trail; kafka streams to downstream
	// consumers when brokers are configured.
	auditStore := memorystore.New(cfg.Audit.MemoryCapacity)
	recorderOpts := []audit.Option{
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New()),
		audit.WithSink("memory", auditStore),
		audit.WithSink("postgres", auditpg.New(auditDB)),
	}
	var kafkaPublisher *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err = kafka.New(ctx, cfg.Kafka, kafka.WithLogger(log))
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		recorderOpts = append(recorderOpts, audit.WithSink("kafka", kafkaPublisher))
		log.Info("audit stream enabled", "topic", cfg.Kafka.AuditTopic, "brokers", cfg.Kafka.Brokers)
	}
	recorder := audit.NewRecorder(cfg.Audit, recorderOpts...)

	router := httptransport.NewRouter(httptransport.Dependencies{
		Config:    cfg,
		Logger:    log,
		Metrics:   metrics.New(),
		Verifier:  identity.NewVerifier(cfg.Auth.JWTSigningKey, tokenIssuer, tokenAudience),
		Resolver:  tenant.NewResolver(tenants, tenant.WithLogger(log), tenant.WithMetrics(tm)),
		Tenants:   tenant.NewService(tenants, tenant.WithLogger(log), tenant.WithMetrics(tm)),
		Sessions:  rls.NewManager(rls.FromPgxPool(pool), cfg.RLS, rls.WithLogger(log), rls.WithMetrics(rlsmetrics.New())),
		Recorder:  recorder,
		AuditView: audit.NewService(auditStore),
		Estimates: estimates.NewStore(),
		DB:        pool,
	})

	srv := httpserver.New(cfg.Addr, router, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			"addr", cfg.Addr,
			"env", cfg.Env,
			"fail_mode", cfg.EffectiveFailMode(),
			"audit_profile", cfg.Audit.Profile,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)

		// Drain buffered audit entries before the sinks go away.
		recorder.Close()
		if kafkaPublisher != nil {
			if closeErr := kafkaPublisher.Close(shutdownCtx); closeErr != nil {
				log.Warn("kafka publisher close failed", "error", closeErr)
			}
		}

		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}
