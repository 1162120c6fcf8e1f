package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nflstats/ingestion/internal/cache"
	"nflstats/ingestion/internal/config"
	"nflstats/ingestion/internal/metrics"
	"nflstats/ingestion/internal/query"
	"nflstats/ingestion/internal/release"
	"nflstats/ingestion/internal/repository"
	"nflstats/ingestion/internal/scheduler"
	"nflstats/ingestion/internal/syncer"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logger
	setupLogger()

	log.Info().Msg("Starting NFL stats ingestion worker")

	// Load configuration
	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Strs("tags", cfg.SyncTags).
		Msg("Configuration loaded")

	// Create context that is cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection
	db, err := repository.NewDatabase(ctx, repository.Config{
		DSN:       cfg.DatabaseDSN(),
		ChunkSize: cfg.IngestChunkSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Msg("Database connection established")

	// Initialize Redis client
	var (
		queryCache query.Cache
		redisCache *cache.RedisCache
	)
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(ctx, cache.Config{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to connect to Redis - continuing without cache")
		} else {
			defer redisCache.Close()
			queryCache = redisCache
			log.Info().Msg("Redis cache connected")
		}
	}
	queries := query.NewService(query.NewReader(db), queryCache, cfg.CacheTTL())

	years, err := cfg.Years()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid SYNC_YEARS")
	}

	releases := release.NewClient(release.Config{
		BaseURL:       cfg.GitHubBaseURL,
		Owner:         cfg.GitHubOwner,
		Repo:          cfg.GitHubRepo,
		Token:         cfg.GitHubToken,
		Timeout:       cfg.ReleaseTimeout,
		MaxConcurrent: cfg.SyncFetchConcurrency,
	})
	syncSvc := syncer.New(releases, db, queries, syncer.Config{FetchConcurrency: cfg.SyncFetchConcurrency})

	// Start metrics HTTP server
	var srv *http.Server
	if cfg.EnableMetrics {
		srv = newMetricsServer(cfg.MetricsPort, db, redisCache)
		go func() {
			log.Info().Int("port", cfg.MetricsPort).Msg("Starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	// Track pool usage
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				stat := db.Pool.Stat()
				metrics.UpdateDBConnectionStats(stat.AcquiredConns(), stat.IdleConns())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Create and start scheduler
	sched := scheduler.NewScheduler(scheduler.Config{
		Cron:        cfg.NightlyRefreshCron,
		Tags:        cfg.SyncTags,
		Years:       years,
		InitialSync: cfg.InitialSyncEnabled,
	}, syncSvc)

	if cfg.EnableScheduler {
		log.Info().Msg("Starting scheduler...")
		if err := sched.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start scheduler")
		}
	} else if cfg.InitialSyncEnabled {
		log.Info().Msg("Running initial data sync...")
		if err := sched.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Initial sync failed, continuing anyway...")
		}
	}

	// Keep running until context is cancelled
	<-ctx.Done()
	log.Info().Msg("Received shutdown signal, gracefully shutting down...")

	if cfg.EnableScheduler {
		sched.Stop()
	}
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}

	log.Info().Msg("Worker shutdown complete")
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// newMetricsServer serves Prometheus metrics and a health check
func newMetricsServer(port int, db *repository.Database, rc *cache.RedisCache) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "healthy", "database": "ok"}
		code := http.StatusOK

		if err := db.Health(r.Context()); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if rc != nil {
			status["cache"] = "ok"
			if err := rc.Health(r.Context()); err != nil {
				status["cache"] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
