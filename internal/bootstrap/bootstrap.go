package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	appControllers "github.com/yigit/schoolhealth/internal/app/controllers"
	appMigrations "github.com/yigit/schoolhealth/internal/app/migrations"
	appRepos "github.com/yigit/schoolhealth/internal/app/repositories"
	"github.com/yigit/schoolhealth/internal/app/repositories/memory"
	appRoutes "github.com/yigit/schoolhealth/internal/app/routes"
	appServices "github.com/yigit/schoolhealth/internal/app/services"
	"github.com/yigit/schoolhealth/internal/config"
	"github.com/yigit/schoolhealth/internal/db"
	appMiddleware "github.com/yigit/schoolhealth/internal/middleware"
	pkgAuth "github.com/yigit/schoolhealth/internal/pkg/auth"
	"github.com/yigit/schoolhealth/internal/pkg/helpers"
	"github.com/yigit/schoolhealth/internal/pkg/logger"
	"github.com/yigit/schoolhealth/internal/pkg/metrics"
	"github.com/yigit/schoolhealth/internal/pkg/validation"
	"github.com/yigit/schoolhealth/internal/seed"
)

// Storage is the selected persistence backend
type Storage struct {
	Repos *appRepos.Repositories
	// Postgres is nil on the memory backend
	Postgres *db.PostgresDB
}

// Ping reports backend reachability for /healthz
func (s *Storage) Ping(ctx context.Context) error {
	if s.Postgres == nil {
		return nil
	}
	return s.Postgres.Ping(ctx)
}

// Close releases the backend
func (s *Storage) Close() {
	if s.Postgres != nil {
		s.Postgres.Close()
	}
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	Storage        *Storage
	Services       *appServices.Services
	JWTService     *pkgAuth.JWTService
	AuthMiddleware *appMiddleware.AuthMiddleware
	Controllers    appRoutes.Controllers
	Logger         zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(filepath.Join("configs", "config.yaml"))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.ParseLevel(cfg.Logging.Level)
	logger.Configure(logger.Config{
		Level:   logLevel,
		Pretty:  strings.ToLower(cfg.Logging.Format) == "text",
		Service: "schoolhealth",
	})

	lgr := logger.Base()
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupStorage opens the configured backend, migrating and seeding it as configured.
func SetupStorage(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*Storage, error) {
	if cfg.UsesMemory() {
		lgr.Warn().Msg("Using the in-memory backend, data is lost on restart")
		storage := &Storage{Repos: memory.NewRepositories(memory.Open())}
		if cfg.Database.Seed {
			if err := seed.CreateDefaultData(ctx, storage.Repos.Roster, lgr); err != nil {
				lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
			}
		}
		return storage, nil
	}

	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	if cfg.Database.AutoMigrate {
		lgr.Info().Msg("Running database migrations...")
		migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := appMigrations.NewMigrator(database.Pool, lgr).Up(migrateCtx); err != nil {
			lgr.Error().Err(err).Msg("Database migration error")
			database.Close()
			return nil, err
		}
		lgr.Info().Msg("Database migrations successfully applied.")
	}

	storage := &Storage{Repos: appRepos.NewRepositories(database.Pool), Postgres: database}
	if cfg.Database.Seed {
		if err := seed.CreateDefaultData(ctx, storage.Repos.Roster, lgr); err != nil {
			lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
		}
	}
	return storage, nil
}

// AggregatorConfig maps the aggregator config section onto the service config
func AggregatorConfig(cfg *config.Config) appServices.AggregatorConfig {
	return appServices.AggregatorConfig{
		MaxRetries:       cfg.Aggregator.MaxRetries,
		InitialInterval:  cfg.Aggregator.InitialInterval,
		MaxInterval:      cfg.Aggregator.MaxInterval,
		MaxElapsedTime:   cfg.Aggregator.MaxElapsedTime,
		ConflictAttempts: cfg.Aggregator.ConflictAttempts,
	}
}

// BuildDependencies initializes services and controllers over storage.
func BuildDependencies(cfg *config.Config, storage *Storage, lgr zerolog.Logger) (*Dependencies, error) {
	if err := validation.RegisterGinRules(); err != nil {
		return nil, fmt.Errorf("failed to register validation rules: %w", err)
	}

	deps := &Dependencies{Storage: storage, Logger: lgr}
	deps.Services = appServices.NewServices(storage.Repos, AggregatorConfig(cfg), lgr)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:      cfg.JWT.Secret,
		AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
		TokenIssuer:    cfg.JWT.Issuer,
	})
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.Controllers = appRoutes.Controllers{
		Campaigns:     appControllers.NewCampaignController(deps.Services.Campaigns),
		Consents:      appControllers.NewConsentController(deps.Services.Consents),
		Results:       appControllers.NewResultController(deps.Services.Results, deps.Services.Campaigns, lgr.With().Str("controller", "result").Logger()),
		Aggregation:   appControllers.NewAggregationController(deps.Services.Aggregator),
		Notifications: appControllers.NewNotificationController(deps.Services.Notifications),
		Health:        appControllers.NewHealthController(storage.Ping),
	}

	if strings.ToLower(cfg.Server.Mode) != "production" {
		seed.LogDemoTokens(deps.JWTService, lgr)
	}
	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	switch strings.ToLower(cfg.Server.Mode) {
	case "production":
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestID(), appMiddleware.RequestLogger())
	if cfg.Metrics.Enabled {
		router.Use(appMiddleware.Metrics())
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
	}

	appRoutes.SetupSwagger(router)
	appRoutes.SetupRouter(router, deps.Controllers, deps.AuthMiddleware)

	return router
}
