package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agritrace/agritrace-backend/api/routes"
	"github.com/agritrace/agritrace-backend/internal/disputes"
	"github.com/agritrace/agritrace-backend/internal/governance"
	"github.com/agritrace/agritrace-backend/internal/participants"
	"github.com/agritrace/agritrace-backend/internal/produce"
	"github.com/agritrace/agritrace-backend/internal/settlement"
	"github.com/agritrace/agritrace-backend/internal/vault"
	"github.com/agritrace/agritrace-backend/pkg/config"
	"github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/logger"
	"github.com/agritrace/agritrace-backend/pkg/metrics"
	"github.com/agritrace/agritrace-backend/pkg/migrate"
	"github.com/agritrace/agritrace-backend/pkg/outbox"
	"github.com/agritrace/agritrace-backend/pkg/redis"
)

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

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	produceRepo := produce.NewRepository(dbClient.DB())
	disputesRepo := disputes.NewRepository(dbClient.DB())

	vaultSvc, err := vault.NewService(vault.NewRepository(dbClient.DB()), dbClient, produceRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create vault service", err)
		os.Exit(1)
	}
	if err := vaultSvc.EnsureSystemAccounts(context.Background()); err != nil {
		logg.Error(context.Background(), "failed to ensure system accounts", err)
		os.Exit(1)
	}

	settlementSvc, err := settlement.NewService(
		produceRepo,
		vaultSvc,
		dbClient,
		outboxSvc,
		settlementMetrics,
		cfg.Settlement.MinReward,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	produceSvc, err := produce.NewService(
		produceRepo,
		dbClient,
		settlementSvc,
		disputesRepo,
		outboxSvc,
		settlementMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create produce service", err)
		os.Exit(1)
	}

	disputesSvc, err := disputes.NewService(disputesRepo, produceRepo, dbClient, outboxSvc, settlementMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create disputes service", err)
		os.Exit(1)
	}

	governanceSvc, err := governance.NewService(governance.NewRepository(dbClient.DB()), dbClient, outboxSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create governance service", err)
		os.Exit(1)
	}

	participantsSvc, err := participants.NewService(
		participants.NewRepository(dbClient.DB()),
		dbClient,
		vaultSvc,
		cfg.JWT,
		cfg.Password,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create participants service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, registry, routes.Services{
			Participants: participantsSvc,
			Produce:      produceSvc,
			Settlement:   settlementSvc,
			Disputes:     disputesSvc,
			Governance:   governanceSvc,
			Vault:        vaultSvc,
		}),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		logg.Info(ctx, "shutdown signal received, draining")
		drainCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "error draining api server", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server stopped")
	}
}
