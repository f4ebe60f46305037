package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/widgetfeedback/internal/adapters/cache"
	"github.com/zatekoja/widgetfeedback/internal/adapters/database"
	"github.com/zatekoja/widgetfeedback/internal/adapters/events"
	"github.com/zatekoja/widgetfeedback/internal/api/handlers"
	"github.com/zatekoja/widgetfeedback/internal/api/middleware"
	"github.com/zatekoja/widgetfeedback/internal/api/routes"
	"github.com/zatekoja/widgetfeedback/internal/application/services"
	"github.com/zatekoja/widgetfeedback/internal/domain/providers"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/redis"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
	"github.com/zatekoja/widgetfeedback/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.App.Env, cfg.App.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Redis is required by the redis store backend and optional otherwise:
	// without it the cache is off and events stay in process.
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		if cfg.Store.Backend == config.StoreBackendRedis {
			log.Fatal().Err(err).Msg("failed to initialize Redis client")
		}
		log.Warn().Err(err).Msg("Redis unavailable, running without response cache and with in-process events")
		redisClient = nil
	} else {
		defer redisClient.Close()
		log.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized")
	}

	repo, closeStore, err := database.NewStateRepository(ctx, cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to initialize feedback store")
	}
	defer closeStore()
	log.Info().Str("backend", cfg.Store.Backend).Str("store_key", cfg.Store.Key).Msg("feedback store initialized")

	var eventBus providers.EventBus
	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		if cfg.Cache.Enabled {
			cacheProvider = cache.NewRedisAdapter(redisClient)
		}
	} else {
		eventBus = events.NewMemoryEventBus()
	}

	var cacheInvalidationService *services.CacheInvalidationService
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation, response cache disabled")
			cacheInvalidationService = nil
		} else {
			cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, cfg.Cache.TTLSeconds, metrics)
		}
	}

	feedbackService := services.NewFeedbackService(repo, eventBus, metrics)
	if cacheMiddleware != nil {
		feedbackService.WithCache(cacheProvider)
	}

	router := routes.NewRouter(
		handlers.NewFeedbackHandler(feedbackService),
		handlers.NewSSEHandler(eventBus),
		cacheMiddleware,
		cfg.Server.AllowedOrigins,
		metrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: event streams stay open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Closing the bus first ends open event streams so Shutdown can drain.
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}
	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	log.Info().Msg("server stopped")
}
