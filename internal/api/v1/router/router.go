package router

import (
	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/crypto"
	"app/internal/middleware"
	"app/internal/pgmq"
	"app/internal/pubsub"
	"app/internal/repository"
	"app/internal/service"
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	logger.Info().Str("environment", cfg.Environment).Msg("Router initializing")

	ctx := context.Background()

	// 1. Resolve the database password. Managed deployments keep it in Secret
	// Manager; local stacks set DB_PASSWORD directly.
	if cfg.DBPasswordSecretName != "" {
		secrets, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Secret Manager client")
			return nil, nil, err
		}
		password, err := secrets.AccessSecret(ctx, cfg.DBPasswordSecretName)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to fetch database password secret")
			return nil, nil, err
		}
		cfg.DBPassword = password
	}

	// 2. Open DB connection pool
	pool, err := pgxpool.New(ctx, cfg.DatabaseDSN())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create DB pool")
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Error().Err(err).Msg("Failed to ping DB")
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// 3. Initialize S3 client for usage exports
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load S3 config")
		pool.Close()
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})

	// 4. Initialize validator
	validate := validator.New(validator.WithRequiredStructEnabled())

	// 5. Initialize Pub/Sub publisher. Services treat a nil publisher as
	// "events disabled", so a missing project ID is not fatal.
	var publisher pubsub.Publisher
	if cfg.GCPProjectID != "" {
		pubSubPublisher, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to create Pub/Sub publisher")
			pool.Close()
			return nil, nil, err
		}
		publisher = pubSubPublisher
	} else {
		logger.Warn().Msg("GCP_PROJECT_ID not set, account events will not be published")
	}

	// 6. Initialize repositories & services & handlers
	accountRepo := repository.NewAccountRepo(pool)
	sessionRepo := repository.NewSessionRepo(pool)
	usageRepo := repository.NewUsageRepo(pool)
	overrideRepo := repository.NewFeatureOverrideRepo(pool)

	hasher := crypto.NewArgon2Hasher(crypto.DefaultParams)
	catalog := service.NewPlanCatalog(cfg)

	authSvc, err := service.NewAuthService(accountRepo, sessionRepo, hasher, publisher, cfg.AccountEventsTopic, cfg.SessionTTL(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create auth service")
		pool.Close()
		return nil, nil, err
	}
	quotaSvc := service.NewQuotaService(usageRepo, catalog, publisher, cfg.AccountEventsTopic, logger)
	featureSvc := service.NewFeatureService(catalog, overrideRepo, logger)
	accountSvc := service.NewAccountService(accountRepo, catalog, publisher, cfg.AccountEventsTopic, logger)
	exportSvc := service.NewExportService(s3Client, cfg.S3Bucket, usageRepo, featureSvc, quotaSvc, logger)
	billingSvc := service.NewBillingService(accountSvc, featureSvc, logger)

	// Retry queue for billing events that fail transiently. Needs the pgmq
	// extension; without it the push endpoint falls back to 5xx-and-redeliver.
	var retryQueue *pgmq.Client
	if queueClient := pgmq.New(pool); queueClient.CreateQueue(ctx, cfg.BillingRetryQueue) == nil {
		retryQueue = queueClient
	} else {
		logger.Warn().Str("queue", cfg.BillingRetryQueue).Msg("pgmq unavailable, billing retry queue disabled")
	}

	authHandler := handler.NewAuthHandler(authSvc, validate)
	accountHandler := handler.NewAccountHandler(catalog, featureSvc, quotaSvc)
	quotaHandler := handler.NewQuotaHandler(quotaSvc, exportSvc, validate)
	billingHandler := handler.NewBillingHandler(billingSvc, retryQueue, cfg.BillingRetryQueue, validate, logger)

	// 7. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(authSvc, logger)
	isLocalDev := cfg.PubSubEmulatorHost != ""
	pubsubAuthMiddleware := middleware.PubSubAuthMiddleware(isLocalDev, cfg.BillingPushEndpointURL, cfg.BillingPushServiceAccountEmail, logger)

	// 8. Create ServeMux router
	mux := http.NewServeMux()

	// Create a subrouter for API v1 with the /v1 prefix
	apiV1Mux := http.NewServeMux()
	authHandler.RegisterRoutes(apiV1Mux)
	accountHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	quotaHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, pubsubAuthMiddleware)

	// Mount the API v1 routes under /v1
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))

	// Add Swagger documentation
	mux.HandleFunc("/swagger/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./docs/swagger/swagger.json")
	})
	mux.Handle("/swagger/", http.StripPrefix("/swagger/", http.FileServer(http.Dir("./docs/swagger/swagger-ui"))))

	// 9. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		Debug:            false,
	})

	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		// Only remove the middleware if it exists.
		// This makes the client more robust, especially for operations like presigned URLs
		// that might inspect the middleware stack.
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
