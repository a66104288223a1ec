package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/cron"
	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/internal/reconcile"
	"github.com/sunshinecowhides/gallery-backend/internal/reporter"
	"github.com/sunshinecowhides/gallery-backend/internal/reservation"
	"github.com/sunshinecowhides/gallery-backend/pkg/cde"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
	"github.com/sunshinecowhides/gallery-backend/pkg/metrics"
	"github.com/sunshinecowhides/gallery-backend/pkg/migrate"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox"
	"github.com/sunshinecowhides/gallery-backend/pkg/redis"
	"github.com/sunshinecowhides/gallery-backend/pkg/storage/s3"
)

const lockKeyFormat = "sc:reconcile-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "reconcile-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "reconcile-worker"

	logg = logger.New(logger.Options{
		ServiceName: "reconcile-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cdeClient, err := cde.New(context.Background(), cfg.CDE, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap cde client", err)
		os.Exit(1)
	}
	defer func() {
		if err := cdeClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing cde client", err)
		}
	}()

	storageClient, err := s3.New(context.Background(), cfg.Storage, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap storage client", err)
		os.Exit(1)
	}

	recordsRepo := inventory.NewRepository(dbClient.DB())
	claimsRepo := reservation.NewRepository(dbClient.DB())
	findingsRepo := reporter.NewRepository(dbClient.DB())
	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	ledger, err := reservation.NewLedger(claimsRepo, dbClient, cfg.Claims, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation ledger", err)
		os.Exit(1)
	}

	projector, err := availability.NewService(recordsRepo, ledger, dbClient, outboxService, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	reporterService, err := reporter.NewService(findingsRepo, recordsRepo, storageClient, cfg.Storage.KeyPrefix, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reporter service", err)
		os.Exit(1)
	}

	engine, err := reconcile.NewEngine(recordsRepo, cdeClient, ledger, projector, findingsRepo, storageClient, cfg.Storage.KeyPrefix, cfg.Reconcile, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	reconcileJob, err := cron.NewReconcileJob(cron.ReconcileJobParams{Logger: logg, Engine: engine})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	sweepJob, err := cron.NewClaimSweepJob(cron.ClaimSweepJobParams{Logger: logg, Ledger: ledger, Projector: projector})
	if err != nil {
		logg.Error(context.Background(), "failed to create claim sweep job", err)
		os.Exit(1)
	}
	orphanJob, err := cron.NewOrphanScanJob(cron.OrphanScanJobParams{Logger: logg, Reporter: reporterService})
	if err != nil {
		logg.Error(context.Background(), "failed to create orphan scan job", err)
		os.Exit(1)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{Logger: logg, Repository: outboxRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Reconcile.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(reconcileJob, sweepJob, orphanJob, retentionJob)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Reconcile.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting reconcile worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "reconcile worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "reconcile worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
