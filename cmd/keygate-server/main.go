// KeyGate server: license registry, access control, and moderation log for
// the storefront.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/keygate-dev/keygate/internal/access"
	"github.com/keygate-dev/keygate/internal/api"
	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/config"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/downloads"
	"github.com/keygate-dev/keygate/internal/licensing"
	"github.com/keygate-dev/keygate/internal/metrics"
	"github.com/keygate-dev/keygate/internal/moderation"
	"github.com/keygate-dev/keygate/internal/presence"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg := config.LoadServerConfig()
	logger := newLogger(cfg.Environment)

	logger.Info().
		Str("version", version).
		Str("environment", string(cfg.Environment)).
		Msg("starting keygate server")

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		logger.Fatal().Msg("SESSION_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, db.DefaultConfig(cfg.DatabaseURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	var tracker *presence.Tracker
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, presence tracking disabled")
	} else {
		tracker = presence.NewTracker(rdb, database, presence.Config{TTL: cfg.PresenceTTL}, logger)
	}
	defer rdb.Close()

	sessions, err := auth.NewSessionStore(auth.SessionConfig{
		Secret:     []byte(cfg.SessionSecret),
		MaxAge:     cfg.SessionMaxAge,
		Secure:     cfg.Environment == config.EnvProduction,
		HTTPOnly:   true,
		SameSite:   http.SameSiteLaxMode,
		CookiePath: "/",
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create session store")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewPrometheusMetrics(registry)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to register metrics")
	}

	feed := moderation.NewFeed(moderation.DefaultFeedConfig(), logger)
	feed.Start()
	defer feed.Stop()

	modLog := moderation.NewLog(database, feed, logger)
	licenseRegistry := licensing.NewRegistry(database, logger)
	accessSvc := access.NewService(database, modLog, logger)
	reconciler := access.NewReconciler(database, logger)

	var dl *downloads.Service
	if cfg.DownloadsEnabled() {
		dl, err = downloads.NewService(ctx, downloads.Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			UseSSL:          cfg.S3UseSSL,
			URLTTL:          cfg.DownloadURLTTL,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create download service")
		}
	} else {
		logger.Info().Msg("object storage not configured, downloads disabled")
	}

	scheduler := cron.New()
	mustSchedule(logger, scheduler, "@every 1m", func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		reconciler.Run(runCtx)
	})
	mustSchedule(logger, scheduler, "@every 30s", func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if tracker != nil {
			tracker.FlushStale(runCtx)
		}
		if n, err := database.CountBannedUsers(runCtx); err == nil {
			m.SetBannedUsers(n)
		}
		m.SetFeedClients(feed.ClientCount())
	})
	scheduler.Start()
	defer scheduler.Stop()

	router, err := api.NewRouter(api.RouterConfig{
		Environment:       cfg.Environment,
		CORSOrigins:       cfg.CORSOrigins,
		RateLimit:         cfg.RateLimit,
		ValidateRateLimit: cfg.ValidateRateLimit,
		AdminPasswordHash: cfg.AdminPasswordHash,
		Version:           version,

		DB:        database,
		Sessions:  sessions,
		Registry:  licenseRegistry,
		Access:    accessSvc,
		ModLog:    modLog,
		Feed:      feed,
		Presence:  tracker,
		Downloads: dl,

		Metrics:         m,
		MetricsRegistry: registry,

		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}

	logger.Info().Msg("keygate server stopped")
}

func newLogger(env config.Environment) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if env == config.EnvDevelopment {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func mustSchedule(logger zerolog.Logger, c *cron.Cron, spec string, job func()) {
	if _, err := c.AddFunc(spec, job); err != nil {
		logger.Fatal().Err(err).Str("spec", spec).Msg("failed to schedule job")
	}
}
