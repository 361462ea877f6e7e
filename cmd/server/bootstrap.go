package main

import (
	"os"

	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/handlers"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/internal/utils"
	"github.com/huangang/studyroom/pkg/logger"
	"gorm.io/gorm"
)

const (
	authRateLimit = 1
	authBurst     = 10
)

// appServices holds the long-lived services and handlers shared by the routes.
type appServices struct {
	cfg            *config.Config
	db             *gorm.DB
	sessionService *services.SessionService
	authLimiter    *middleware.RateLimiter
	authHandler    *handlers.AuthHandler
}

func newAppServices(cfg *config.Config, db *gorm.DB) *appServices {
	return &appServices{
		cfg:            cfg,
		db:             db,
		sessionService: services.NewSessionService(db, &cfg.Session),
		authLimiter:    middleware.NewRateLimiter(authRateLimit, authBurst),
		authHandler:    handlers.NewAuthHandler(db, cfg),
	}
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.Session.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		logger.Fatalf("Failed to create upload directory: %v", err)
	}

	svc := newAppServices(cfg, models.GetDB())

	if err := svc.sessionService.StartCleanupScheduler(); err != nil {
		logger.Warn().Err(err).Msg("Failed to start session cleanup scheduler")
	}

	// Create default admin user
	if err := svc.authHandler.CreateAdminIfNotExists(&cfg.Admin); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return svc
}

// shutdown stops background work.
func (s *appServices) shutdown() {
	s.sessionService.StopCleanupScheduler()
	s.authLimiter.Stop()
	logger.Info().Msg("All schedulers stopped")
}
