package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/campuslink/backend/internal/adapters/cache"
	"github.com/zatekoja/campuslink/backend/internal/adapters/database"
	"github.com/zatekoja/campuslink/backend/internal/adapters/events"
	"github.com/zatekoja/campuslink/backend/internal/adapters/memory"
	"github.com/zatekoja/campuslink/backend/internal/adapters/search"
	"github.com/zatekoja/campuslink/backend/internal/api/handlers"
	"github.com/zatekoja/campuslink/backend/internal/api/middleware"
	"github.com/zatekoja/campuslink/backend/internal/api/routes"
	"github.com/zatekoja/campuslink/backend/internal/application/services"
	"github.com/zatekoja/campuslink/backend/internal/domain/providers"
	"github.com/zatekoja/campuslink/backend/internal/domain/repositories"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/campuslink/backend/internal/infrastructure/observability"
	"github.com/zatekoja/campuslink/backend/pkg/config"
)

const cacheWarmingInterval = 5 * time.Minute

type stores struct {
	utilities    repositories.UtilityRepository
	roommates    repositories.RoommateProfileRepository
	universities repositories.UniversityRepository
	close        func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			observability.EnableLogExport()
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

	// Redis is optional; without it there is no response cache and events
	// stay in process.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
		}
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus()
	}

	st, err := openStores(ctx, cfg, cacheProvider)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	defer st.close()

	var searchRepo repositories.UtilitySearchRepository
	if cfg.Typesense.Enabled {
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			log.Warn().Err(err).Msg("Typesense unavailable, text search runs against the store")
		} else {
			adapter := search.NewTypesenseAdapter(tsClient)
			if err := adapter.InitSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("failed to initialize Typesense schema")
			} else {
				searchRepo = adapter
			}
		}
	}

	directoryService := services.NewDirectoryService(st.utilities, searchRepo)
	directoryService.SetEventBus(eventBus)
	directoryService.SetMetrics(metrics)

	roommateService := services.NewRoommateService(st.roommates, services.NewCompatibilityEngine())
	universityService := services.NewUniversityService(st.universities)

	var cacheMiddleware *middleware.CacheMiddleware
	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, middleware.DefaultCacheRoutes(), metrics)

		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start cache invalidation service")
			cacheInvalidationService = nil
		}

		services.NewCacheWarmingService(st.universities, cacheProvider).
			StartPeriodicWarming(ctx, cacheWarmingInterval)
	}

	router := routes.NewRouter(
		handlers.NewRoommateHandler(roommateService),
		handlers.NewUtilityHandler(directoryService),
		handlers.NewUniversityHandler(universityService),
		middleware.NewAuthenticator(cfg.Auth.JWTSecret),
		routes.Options{
			SSEHandler:      handlers.NewSSEHandler(eventBus),
			CacheMiddleware: cacheMiddleware,
			AllowedOrigins:  cfg.Server.AllowedOrigins,
			Metrics:         metrics,
		},
	)

	// No WriteTimeout: event streams stay open.
	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Str("store", cfg.Store.Driver).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}
	if err := eventBus.Close(); err != nil {
		log.Error().Err(err).Msg("error closing event bus")
	}

	log.Info().Msg("server stopped")
}

// openStores builds the repositories for the configured driver. University
// reads go through the cache when one is available.
func openStores(ctx context.Context, cfg *config.Config, cacheProvider providers.CacheProvider) (*stores, error) {
	if cfg.Store.Driver == "memory" {
		st := &stores{
			utilities:    memory.NewUtilityStore(cfg.Store.ReviewMaxRetries),
			roommates:    memory.NewRoommateProfileStore(),
			universities: memory.NewUniversityStore(),
			close:        func() {},
		}
		if cacheProvider != nil {
			st.universities = database.NewCachedUniversityAdapter(st.universities, cacheProvider)
		}
		return st, nil
	}

	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	st := &stores{
		utilities:    database.NewUtilityAdapter(client, cfg.Store.ReviewMaxRetries),
		roommates:    database.NewRoommateProfileAdapter(client),
		universities: database.NewUniversityAdapter(client),
		close: func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("error closing database")
			}
		},
	}
	if cacheProvider != nil {
		st.universities = database.NewCachedUniversityAdapter(st.universities, cacheProvider)
	}
	return st, nil
}
