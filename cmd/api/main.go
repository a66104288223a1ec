package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/sunshinecowhides/gallery-backend/api/routes"
	adminsvc "github.com/sunshinecowhides/gallery-backend/internal/admin"
	"github.com/sunshinecowhides/gallery-backend/internal/availability"
	"github.com/sunshinecowhides/gallery-backend/internal/catalog"
	checkoutsvc "github.com/sunshinecowhides/gallery-backend/internal/checkout"
	"github.com/sunshinecowhides/gallery-backend/internal/inventory"
	"github.com/sunshinecowhides/gallery-backend/internal/reporter"
	"github.com/sunshinecowhides/gallery-backend/internal/reservation"
	"github.com/sunshinecowhides/gallery-backend/pkg/cde"
	"github.com/sunshinecowhides/gallery-backend/pkg/config"
	"github.com/sunshinecowhides/gallery-backend/pkg/db"
	"github.com/sunshinecowhides/gallery-backend/pkg/logger"
	"github.com/sunshinecowhides/gallery-backend/pkg/migrate"
	"github.com/sunshinecowhides/gallery-backend/pkg/outbox"
	"github.com/sunshinecowhides/gallery-backend/pkg/redis"
	"github.com/sunshinecowhides/gallery-backend/pkg/storage/s3"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

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

	catalogService, err := catalog.NewService(recordsRepo, storageClient, redisClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	checkoutService, err := checkoutsvc.NewService(ledger, recordsRepo, projector, dbClient, outboxService, cdeClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	adminService, err := adminsvc.NewService(recordsRepo, claimsRepo, projector, dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create admin service", err)
		os.Exit(1)
	}

	reporterService, err := reporter.NewService(findingsRepo, recordsRepo, storageClient, cfg.Storage.KeyPrefix, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reporter service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			storageClient,
			cdeClient,
			catalogService,
			ledger,
			projector,
			checkoutService,
			adminService,
			reporterService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
