package main

import (
	"context"
	"os/signal"
	"syscall"

	"app/internal/config"
	"app/internal/logger"
	"app/internal/pgmq"
	"app/internal/repository"
	"app/internal/service"
	"app/internal/worker/billing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize DB connection pool
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN())
	if err != nil {
		logger.Fatal().Msgf("Failed to create DB pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	// Initialize PGMQ client and ensure the retry queue exists
	queueClient := pgmq.New(pool)
	if err := queueClient.CreateQueue(ctx, cfg.BillingRetryQueue); err != nil {
		logger.Fatal().Msgf("Failed to create billing retry queue: %v", err)
	}
	logger.Info().Str("queue", cfg.BillingRetryQueue).Msg("PGMQ client initialized")

	// Wire the services the worker re-applies events through. The worker
	// publishes no events of its own, so no Pub/Sub publisher is needed.
	accountRepo := repository.NewAccountRepo(pool)
	overrideRepo := repository.NewFeatureOverrideRepo(pool)
	catalog := service.NewPlanCatalog(cfg)
	accountSvc := service.NewAccountService(accountRepo, catalog, nil, cfg.AccountEventsTopic, logger)
	featureSvc := service.NewFeatureService(catalog, overrideRepo, logger)
	billingSvc := service.NewBillingService(accountSvc, featureSvc, logger)

	if err := billing.Run(ctx, logger, queueClient, cfg.BillingRetryQueue, billingSvc); err != nil {
		logger.Fatal().Msgf("Billing retry worker failed: %v", err)
	}
	logger.Info().Msg("Billing retry worker stopped gracefully")
}
