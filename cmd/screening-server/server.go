package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medscreen/medscreen/internal/config"
	"github.com/medscreen/medscreen/internal/domain/calorie"
	"github.com/medscreen/medscreen/internal/domain/identity"
	"github.com/medscreen/medscreen/internal/domain/questionnaire"
	"github.com/medscreen/medscreen/internal/domain/screening"
	"github.com/medscreen/medscreen/internal/platform/auth"
	"github.com/medscreen/medscreen/internal/platform/cache"
	"github.com/medscreen/medscreen/internal/platform/db"
	"github.com/medscreen/medscreen/internal/platform/middleware"
	"github.com/medscreen/medscreen/internal/platform/openapi"
	"github.com/medscreen/medscreen/internal/platform/reporting"
	"github.com/medscreen/medscreen/internal/platform/telemetry"
)

const version = "0.1.0"

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := newLogger(nil)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Questionnaire definition cache (optional)
	var templateCache questionnaire.TemplateCache
	if cfg.RedisURL != "" {
		client, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		templateCache = cache.NewStore[questionnaire.Template](client, "questionnaire:", cfg.DefinitionCacheTTL)
		logger.Info().Dur("ttl", cfg.DefinitionCacheTTL).Msg("questionnaire cache enabled")
	}

	e, err := newServer(cfg, logger, pool, templateCache)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires repositories, services and routes. templateCache may be
// nil.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, templateCache questionnaire.TemplateCache) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	metrics := telemetry.NewRegistry()
	metrics.Describe("http_server_requests_total", "HTTP requests by route and status.")
	metrics.Describe("http_server_request_duration_seconds", "HTTP request latency in seconds.")
	metrics.Describe("screening_submissions_total", "Scored screening submissions by subject type and tier resolution.")

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.TemplateBodyLimit))
	if cfg.RequestTimeout > 0 {
		e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, func() *db.PoolStats { return db.GetPoolStats(pool) }))
	e.GET("/metrics", metrics.Handler())

	tokens := auth.NewTokenIssuer(cfg.SigningSecret(), cfg.JWTIssuer, cfg.TokenTTL)

	// Services
	identitySvc := identity.NewService(
		identity.NewDoctorRepoPG(pool),
		identity.NewPatientRepoPG(pool),
		identity.NewCaregiverRepoPG(pool),
		identity.NewRespondentRepoPG(pool),
		tokens,
	)
	questionnaireSvc := questionnaire.NewService(questionnaire.NewTemplateRepoPG(pool), logger)
	if templateCache != nil {
		questionnaireSvc.SetCache(templateCache)
	}
	screeningSvc := screening.NewService(screening.NewResultRepoPG(pool), questionnaireSvc, identitySvc, logger)
	screeningSvc.SetMetrics(metrics)
	calorieSvc := calorie.NewService(calorie.NewRecordRepoPG(pool), identitySvc)

	// Route groups: login and registration are rate limited, the public
	// catalogue needs no token, everything else does.
	authGroup := e.Group("/api/v1/auth", middleware.RateLimit(loginRateLimit(cfg)))
	publicGroup := e.Group("/api/v1/public")

	var authMW echo.MiddlewareFunc
	if cfg.IsDev() {
		devID, err := uuid.Parse(cfg.DevDoctorID)
		if err != nil {
			return nil, err
		}
		authMW = auth.DevAuthMiddleware(tokens, auth.Principal{
			ID:   devID,
			Type: auth.PrincipalDoctor,
			Role: auth.RoleAdmin,
		})
		logger.Warn().Str("doctor_id", devID.String()).Msg("development auth enabled; unauthenticated requests act as admin")
	} else {
		authMW = auth.JWTMiddleware(tokens)
	}
	apiV1 := e.Group("/api/v1", authMW)

	identity.NewHandler(identitySvc).RegisterRoutes(authGroup, apiV1)
	questionnaire.NewHandler(questionnaireSvc).RegisterRoutes(publicGroup, apiV1)
	screening.NewHandler(screeningSvc).RegisterRoutes(apiV1)
	calorie.NewHandler(calorieSvc).RegisterRoutes(apiV1)
	reporting.NewHandler(pool).RegisterRoutes(apiV1)

	openapi.NewGenerator(e.Routes, version, "/api/v1", "/api/v1/public", "/api/v1/auth").RegisterRoutes(e)

	return e, nil
}

func loginRateLimit(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.LoginRateLimitRPS,
		BurstSize:         cfg.LoginRateBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		return middleware.LoginRateLimitConfig()
	}
	return rl
}
