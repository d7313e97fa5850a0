package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	avatarhandlers "Avatar/internal/api/handlers/avatar"
	"Avatar/internal/api/routes"
	"Avatar/internal/atproto/identity"
	"Avatar/internal/atproto/transport"
	"Avatar/internal/core/avatar"
)

func main() {
	// Local overrides first; godotenv never overwrites variables already set
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to load %s: %v", f, err)
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(os.Getenv("LOG_LEVEL")),
	})))

	cfg := avatar.ConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid avatar configuration: ", err)
	}

	if cfg.AllowPrivateNetworks {
		slog.Warn("[AVATAR] outbound requests may reach private networks, do not use in production")
	}

	httpClient := transport.NewSSRFSafeHTTPClient(cfg.AllowPrivateNetworks, cfg.FetchTimeout)

	resolver := identity.NewResolver(identity.Config{
		HTTPClient: httpClient,
		PLCURL:     cfg.PLCURL,
	})

	pdsLocator, err := avatar.NewPDSLocator(resolver, httpClient)
	if err != nil {
		log.Fatal("Failed to create PDS locator: ", err)
	}
	bskyLocator := avatar.NewBlueskyLocator(cfg.BlueskyAPIURL, httpClient)

	avatarService, err := avatar.NewService(
		avatar.NewHTTPFetcher(httpClient, cfg.MaxSourceSizeMB),
		avatar.NewProcessor(),
		pdsLocator,
		bskyLocator,
	)
	if err != nil {
		log.Fatal("Failed to create avatar service: ", err)
	}

	verifier, err := avatar.NewVerifier(cfg.SharedSecret)
	if err != nil {
		log.Fatal("Failed to create signature verifier: ", err)
	}

	responseCache, stopCache := newCache(cfg)
	defer stopCache()

	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)

	routes.RegisterAvatarRoutes(r, avatarhandlers.NewHandler(avatarService, verifier, responseCache))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.FetchTimeout*3 + 10*time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("[AVATAR] metrics server starting", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("[AVATAR] metrics server failed", "error", err)
			}
		}()
	}

	go func() {
		slog.Info("[AVATAR] avatar service starting",
			"port", cfg.Port,
			"cache_backend", cfg.CacheBackend,
			"bsky_api", cfg.BlueskyAPIURL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("[AVATAR] shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("[AVATAR] server shutdown failed", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			slog.Error("[AVATAR] metrics server shutdown failed", "error", err)
		}
	}
	slog.Info("[AVATAR] server exited")
}

// newCache builds the configured response cache. The returned func stops any
// background work the cache started.
func newCache(cfg avatar.Config) (avatar.Cache, func()) {
	switch cfg.CacheBackend {
	case avatar.CacheBackendNone:
		slog.Info("[AVATAR] response cache disabled")
		return avatar.NopCache{}, func() {}

	case avatar.CacheBackendDisk:
		diskCache, err := avatar.NewDiskCache(cfg.CachePath, cfg.CacheMaxGB, cfg.CacheTTL)
		if err != nil {
			log.Fatal("Failed to create disk cache: ", err)
		}
		stop := diskCache.StartCleanupJob(cfg.CleanupInterval)
		slog.Info("[AVATAR] using disk cache",
			"path", cfg.CachePath,
			"max_gb", cfg.CacheMaxGB,
		)
		return diskCache, stop

	case avatar.CacheBackendRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		redisCache, err := avatar.NewRedisCache(ctx, cfg.RedisURL, cfg.CacheTTL, cfg.CacheSize)
		if err != nil {
			log.Fatal("Failed to connect to redis cache: ", err)
		}
		slog.Info("[AVATAR] using redis cache")
		return redisCache, func() {}

	default:
		slog.Info("[AVATAR] using in-memory cache", "size", cfg.CacheSize)
		return avatar.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL), func() {}
	}
}

func parseLogLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
