// Package api wires middleware and handlers into the HTTP router.
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/keygate-dev/keygate/docs/api" // swagger docs

	"github.com/keygate-dev/keygate/internal/access"
	"github.com/keygate-dev/keygate/internal/api/handlers"
	"github.com/keygate-dev/keygate/internal/api/middleware"
	"github.com/keygate-dev/keygate/internal/auth"
	"github.com/keygate-dev/keygate/internal/config"
	"github.com/keygate-dev/keygate/internal/db"
	"github.com/keygate-dev/keygate/internal/downloads"
	"github.com/keygate-dev/keygate/internal/licensing"
	"github.com/keygate-dev/keygate/internal/metrics"
	"github.com/keygate-dev/keygate/internal/moderation"
	"github.com/keygate-dev/keygate/internal/presence"
)

// maxBodyBytes caps JSON request bodies. The API never accepts uploads.
const maxBodyBytes = 1 << 20

// RouterConfig bundles the services and settings the router wires together.
type RouterConfig struct {
	Environment       config.Environment
	CORSOrigins       []string
	RateLimit         string
	ValidateRateLimit string
	AdminPasswordHash string
	Version           string

	DB        *db.DB
	Sessions  *auth.SessionStore
	Registry  *licensing.Registry
	Access    *access.Service
	ModLog    *moderation.Log
	Feed      *moderation.Feed
	Presence  *presence.Tracker
	Downloads *downloads.Service

	Metrics         *metrics.PrometheusMetrics
	MetricsRegistry *prometheus.Registry

	Logger zerolog.Logger
}

// NewRouter builds the Gin engine with all middleware and routes.
//
// @title KeyGate API
// @version 1.0
// @description Storefront core: license registry, access control, and moderation log.
// @BasePath /api/v1
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORSOrigins, cfg.Environment))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	generalLimiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("general rate limiter: %w", err)
	}
	validateLimiter, err := middleware.NewRateLimiter(cfg.ValidateRateLimit)
	if err != nil {
		return nil, fmt.Errorf("validate rate limiter: %w", err)
	}

	// nil concrete services must stay nil interfaces in the handlers
	var pres handlers.PresenceService
	if cfg.Presence != nil {
		pres = cfg.Presence
	}
	var dl handlers.Downloader
	if cfg.Downloads != nil {
		dl = cfg.Downloads
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Version, cfg.Logger)
	healthHandler.RegisterRoutes(r)

	if cfg.MetricsRegistry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	v1.Use(generalLimiter)

	// Routes behind a resolved, non-banned session
	session := v1.Group("")
	session.Use(middleware.AuthMiddleware(cfg.Sessions, cfg.Logger))
	session.Use(middleware.BanGuardMiddleware(cfg.DB, cfg.Sessions, cfg.Logger))

	authHandler := handlers.NewAuthHandler(cfg.Access, pres, cfg.Sessions, cfg.AdminPasswordHash, cfg.Logger)
	authHandler.RegisterRoutes(v1, session)

	validate := session.Group("")
	validate.Use(validateLimiter)

	storefrontHandler := handlers.NewStorefrontHandler(cfg.Registry, cfg.DB, dl, cfg.Metrics, cfg.Logger)
	storefrontHandler.RegisterRoutes(session, validate)

	// Admin surface; each route enforces its own permission
	admin := session.Group("/admin")

	handlers.NewLicensesHandler(cfg.Registry, cfg.Logger).RegisterRoutes(admin)
	handlers.NewUsersHandler(cfg.Access, pres, cfg.Metrics, cfg.Logger).RegisterRoutes(admin)
	handlers.NewProductsHandler(cfg.DB, cfg.ModLog, cfg.Metrics, cfg.Logger).RegisterRoutes(admin)
	handlers.NewCommentsHandler(cfg.DB, cfg.ModLog, cfg.Metrics, cfg.Logger).RegisterRoutes(admin)
	handlers.NewModerationHandler(cfg.ModLog, cfg.Feed, cfg.Logger).RegisterRoutes(admin)
	handlers.NewSettingsHandler(cfg.DB, cfg.Logger).RegisterRoutes(admin)

	return r, nil
}
