// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	auditapi "rollout/internal/audit"
	auditservice "rollout/internal/audit/service"
	"rollout/internal/evaluation"
	"rollout/internal/evaluation/cache"
	evalmetrics "rollout/internal/evaluation/metrics"
	evalservice "rollout/internal/evaluation/service"
	"rollout/internal/flags"
	flagmetrics "rollout/internal/flags/metrics"
	flagservice "rollout/internal/flags/service"
	flagstore "rollout/internal/flags/store"
	httpapi "rollout/internal/http"
	"rollout/internal/platform/config"
	"rollout/internal/platform/httpserver"
	"rollout/internal/platform/logger"
	"rollout/internal/platform/metrics"
	"rollout/internal/platform/postgres"
	platformredis "rollout/internal/platform/redis"
	audit "rollout/pkg/platform/audit"
	"rollout/pkg/platform/audit/publisher"
	auditmemory "rollout/pkg/platform/audit/store/memory"
	auditpg "rollout/pkg/platform/audit/store/postgres"
	"rollout/pkg/platform/middleware/auth"
	"rollout/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()
	health := map[string]httpapi.HealthCheck{}

	// Stores. Without DATABASE_URL the server runs on in-memory stores,
	// which lose all state on restart.
	var (
		flagStore  flagBackend
		auditStore audit.Store
		runner     tx.Runner = tx.NewNoopRunner()
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		flagStore = flagstore.NewPostgres(db)
		auditStore = auditpg.New(db)
		runner = tx.NewSQLRunner(db, 0)
		health["postgres"] = db.PingContext
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		flagStore = flagstore.NewInMemory()
		auditStore = auditmemory.NewInMemoryStore()
	}

	// Audit ledger, with optional Kafka fan-out.
	auditMetrics := audit.NewMetrics()
	ledgerOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(auditMetrics)}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := publisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaAuditTopic, log)
		if err != nil {
			return err
		}
		defer kafka.Close()
		ledgerOpts = append(ledgerOpts, audit.WithPublisher(kafka))
	}
	ledger := audit.NewLedger(auditStore, ledgerOpts...)

	// Evaluation path, with optional Redis snapshot cache.
	evalMetrics := evalmetrics.New()
	reader := evalservice.FlagReader(flagStore)
	flagServiceOpts := []flagservice.Option{
		flagservice.WithLogger(log),
		flagservice.WithMetrics(flagmetrics.New()),
	}
	if cfg.RedisURL != "" {
		redisClient, err := platformredis.New(cfg.RedisURL, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		health["redis"] = redisClient.Health

		snapshotCache := cache.New(redisClient.Client, flagStore,
			cache.WithTTL(cfg.CacheTTL),
			cache.WithLogger(log),
			cache.WithMetrics(evalMetrics),
		)
		reader = snapshotCache
		flagServiceOpts = append(flagServiceOpts, flagservice.WithInvalidator(snapshotCache))
	}

	evalService, err := evaluation.NewService(reader, ledger,
		evalservice.WithLogger(log),
		evalservice.WithMetrics(evalMetrics),
		evalservice.WithReadTimeout(cfg.StoreReadTimeout),
	)
	if err != nil {
		return err
	}

	flagService, err := flags.NewService(flagStore, ledger, runner, flagServiceOpts...)
	if err != nil {
		return err
	}

	auditService := auditapi.NewService(auditStore, auditservice.WithLogger(log))

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:       log,
		Evaluation:   evaluation.NewHandler(evalService, log, cfg.DefaultEnvironment),
		Flags:        flags.NewHandler(flagService, log),
		Audit:        auditapi.NewHandler(auditService, log),
		AuthVerifier: auth.NewVerifier(cfg.JWTSigningKey),
		HTTPMetrics:  metrics.NewHTTP(),
		HealthChecks: health,
	})

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("rollout server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}
	return httpserver.Shutdown(srv)
}

// flagBackend is what both flag stores provide: the admin store contract plus
// the evaluation read path.
type flagBackend interface {
	flagservice.Store
	evalservice.FlagReader
}
