package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/middleware"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/response"
	"gorm.io/gorm"
)

type AuthHandler struct {
	authService *services.AuthService
	sessionCfg  *config.SessionConfig
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	sessions := services.NewSessionService(db, &cfg.Session)
	return &AuthHandler{
		authService: services.NewAuthService(db, sessions, services.NewGoogleVerifier(cfg.Google.ClientID)),
		sessionCfg:  &cfg.Session,
	}
}

type LoginResponse struct {
	Token     string       `json:"token"`
	CSRFToken string       `json:"csrf_token"`
	ExpireAt  time.Time    `json:"expire_at"`
	User      *models.User `json:"user"`
}

func (h *AuthHandler) startSession(c *gin.Context, result *services.LoginResult, status int) {
	middleware.SetSessionCookie(c, h.sessionCfg, result.Session)

	if !wantsJSON(c) {
		redirectToDashboard(c, http.StatusSeeOther)
		return
	}

	c.JSON(status, response.Response{
		Code:    0,
		Message: "ok",
		Data: LoginResponse{
			Token:     result.Session.Token,
			CSRFToken: result.Session.Session.CSRFToken,
			ExpireAt:  result.Session.ExpiresAt,
			User:      result.User,
		},
	})
}

// Register creates an account and logs it in
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.startSession(c, result, http.StatusCreated)
}

// Login handles email, role and password login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.startSession(c, result, http.StatusOK)
}

// GoogleLogin exchanges a Google Sign-In credential for a session
// POST /api/auth/google
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req services.GoogleLoginRequest
	if !bind(c, &req) {
		return
	}

	result, err := h.authService.LoginWithGoogle(c.Request.Context(), &req, clientInfo(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.startSession(c, result, http.StatusOK)
}

// GetCurrentUser returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, user)
}

// GetCSRFToken returns the token unsafe requests must echo
// GET /api/auth/csrf
func (h *AuthHandler) GetCSRFToken(c *gin.Context) {
	response.Success(c, gin.H{"csrf_token": middleware.CSRFToken(c)})
}

// ChangePassword changes the caller's password
// POST /api/auth/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bind(c, &req) {
		return
	}

	if err := h.authService.ChangePassword(c.Request.Context(), middleware.CurrentIdentity(c), &req); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"message": "password changed successfully"})
}

// Logout revokes the session and clears the cookie
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.CurrentIdentity(c)); err != nil {
		respondError(c, err)
		return
	}

	middleware.ClearSessionCookie(c, h.sessionCfg)
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// CreateAdminIfNotExists creates default admin user
func (h *AuthHandler) CreateAdminIfNotExists(cfg *config.AdminConfig) error {
	return h.authService.CreateAdminIfNotExists(cfg)
}
