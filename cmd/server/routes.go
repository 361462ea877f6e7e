package main

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/handlers"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	db, cfg := svc.db, svc.cfg

	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/health", healthHandler.CheckHealth)

	r.Static(strings.TrimSuffix(services.UploadURLPrefix, "/"), cfg.Upload.Dir)

	// Public auth routes, throttled per IP
	auth := r.Group("/api/auth", svc.authLimiter.Middleware())
	{
		auth.POST("/register", svc.authHandler.Register)
		auth.POST("/login", svc.authHandler.Login)
		auth.POST("/google", svc.authHandler.GoogleLogin)
	}

	// Session routes
	protected := r.Group("")
	protected.Use(middleware.AuthRequired(svc.sessionService, &cfg.Session), middleware.AuditLog())

	roomHandler := handlers.NewRoomHandler(db, cfg)
	dashboardHandler := handlers.NewDashboardHandler(db, cfg)
	noteHandler := handlers.NewNoteHandler(db)
	taskHandler := handlers.NewTaskHandler(db)
	markHandler := handlers.NewMarkHandler(db)
	profileHandler := handlers.NewProfileHandler(db, cfg)

	{
		protected.GET("/dashboard", dashboardHandler.Get)
		// SameSite=Strict keeps cross-site links from carrying the cookie here.
		protected.GET("/rooms/:id/join", roomHandler.Join)

		protected.GET("/api/auth/me", svc.authHandler.GetCurrentUser)
		protected.GET("/api/auth/csrf", svc.authHandler.GetCSRFToken)

		protected.GET("/api/rooms", roomHandler.List)
		protected.GET("/api/rooms/suggested", roomHandler.Suggested)
		protected.GET("/api/rooms/:id", roomHandler.GetByID)

		protected.GET("/api/notes", noteHandler.List)
		protected.GET("/api/tasks", taskHandler.List)
		protected.GET("/api/marks", markHandler.List)
	}

	// State-changing routes
	mutating := protected.Group("", middleware.CSRFRequired())
	{
		mutating.POST("/api/auth/logout", svc.authHandler.Logout)
		mutating.POST("/api/auth/password", svc.authHandler.ChangePassword)

		mutating.POST("/rooms", roomHandler.Create)
		mutating.POST("/api/rooms/:id/join", roomHandler.JoinAPI)

		mutating.POST("/api/notes", noteHandler.Save)
		mutating.DELETE("/api/notes/:id", noteHandler.Delete)

		mutating.POST("/api/tasks", taskHandler.Save)
		mutating.DELETE("/api/tasks/:id", taskHandler.Delete)

		mutating.POST("/api/profile/picture", profileHandler.UploadPicture)

		mutating.POST("/api/marks", middleware.AdminRequired(), markHandler.Create)
	}
}
