package router

import (
	"context"
	"fmt"
	"net/http"

	"flashcards/internal/api/v1/handler"
	"flashcards/internal/config"
	"flashcards/internal/middleware"
	"flashcards/internal/repository"
	"flashcards/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Deps are the external collaborators the HTTP surface is built on.
type Deps struct {
	Users    repository.UserRepository
	Sets     repository.FlashcardSetRepository
	APIKeys  service.APIKeyStore
	Payments service.PaymentGateway
	LLM      service.LLMClient
}

// New connects the configured store and provider clients and returns the
// HTTP handler plus a cleanup func for the store connection.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	logger.Info().Str("environment", cfg.Environment).Str("store_backend", cfg.StoreBackend).Msg("Building router")

	deps, cleanup, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	if cfg.GCPProjectID != "" {
		keyStore, err := service.NewSecretManagerKeyStore(ctx, cfg.GCPProjectID)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		deps.APIKeys = keyStore
		logger.Info().Str("gcp_project_id", cfg.GCPProjectID).Msg("Storing user API keys in Secret Manager")
	}

	deps.Payments = service.NewStripeGateway(cfg.StripeSecretKey)
	deps.LLM = service.NewAnthropicClient(service.AnthropicConfig{
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
	})

	return NewHandler(cfg, deps, logger), cleanup, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (Deps, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return Deps{}, nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("Redis connection successful")
		store := repository.NewPathStore(client, cfg.RedisKeyPrefix)
		return Deps{Users: store, Sets: store, APIKeys: store}, func() { _ = client.Close() }, nil

	default:
		if cfg.DBAutoMigrate {
			if err := repository.MigrateUp(cfg.DatabaseURL); err != nil {
				return Deps{}, nil, err
			}
			logger.Info().Msg("Database migrations applied")
		}
		pool, err := repository.NewPool(ctx, cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			return Deps{}, nil, err
		}
		logger.Info().Msg("Database connection successful")
		return Deps{
			Users:   repository.NewUserRepo(pool),
			Sets:    repository.NewFlashcardSetRepo(pool),
			APIKeys: repository.NewAPIKeyRepo(pool),
		}, pool.Close, nil
	}
}

// NewHandler wires services and handlers over deps and mounts them under /v1.
func NewHandler(cfg *config.Config, deps Deps, logger zerolog.Logger) http.Handler {
	validate := validator.New(validator.WithRequiredStructEnabled())

	reconciler := service.NewWebhookReconciler(service.ReconcilerConfig{
		WebhookSecret: cfg.StripeWebhookSecret,
		Tolerance:     cfg.StripeWebhookTolerance,
	}, deps.Users, logger)
	stripeSvc := service.NewStripeService(service.StripeConfig{
		PriceID:         cfg.StripePriceID,
		SuccessURL:      cfg.StripeSuccessURL,
		CancelURL:       cfg.StripeCancelURL,
		PortalReturnURL: cfg.PortalReturnURL(),
	}, deps.Users, deps.Payments, logger)
	apiKeySvc := service.NewAPIKeyService(deps.APIKeys, deps.LLM, logger)
	userSvc := service.NewUserService(deps.Users, apiKeySvc)
	flashcardSvc := service.NewFlashcardService(deps.LLM, apiKeySvc, cfg.AnthropicAPIKey, logger)
	setSvc := service.NewFlashcardSetService(deps.Sets, logger)

	authMiddleware := middleware.AuthMiddleware(cfg.AuthJWTKey, logger)

	apiV1Mux := http.NewServeMux()
	handler.NewWebhookHandler(reconciler, logger).RegisterRoutes(apiV1Mux)
	handler.NewSubscriptionHandler(stripeSvc, userSvc, logger).RegisterRoutes(apiV1Mux, authMiddleware)
	handler.NewFlashcardHandler(flashcardSvc, validate, logger).RegisterRoutes(apiV1Mux, authMiddleware)
	handler.NewFlashcardSetHandler(setSvc, validate, logger).RegisterRoutes(apiV1Mux, authMiddleware)
	handler.NewUserHandler(userSvc, apiKeySvc, validate, logger).RegisterRoutes(apiV1Mux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux))
}
