package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/config"
	"github.com/huangang/studyroom/internal/models"
	"github.com/huangang/studyroom/internal/services"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/huangang/studyroom/pkg/response"
)

const (
	ContextUserID    = "user_id"
	ContextUsername  = "username"
	ContextRole      = "role"
	ContextSessionID = "session_id"
	ContextCSRFToken = "csrf_token"

	// SessionTokenHeader carries a rotated token back to bearer clients.
	SessionTokenHeader = "X-Session-Token"
)

// AuthRequired resolves the session token from the session cookie or an
// "Authorization: Bearer" header. Sessions past the rotation interval are
// replaced and the new token is sent back.
func AuthRequired(sessions *services.SessionService, cfg *config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie, ok := sessionToken(c, cfg.CookieName)
		if !ok {
			response.Unauthorized(c, "authentication required")
			c.Abort()
			return
		}

		resolved, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, services.ErrUnauthenticated) {
				logger.FromContext(c).Error().Err(err).Msg("session lookup failed")
				response.ServerError(c, "internal server error")
				c.Abort()
				return
			}
			if fromCookie {
				ClearSessionCookie(c, cfg)
			}
			response.Unauthorized(c, "invalid or expired session")
			c.Abort()
			return
		}

		identity := resolved.Identity
		if resolved.NeedsRotation(time.Now(), sessions.RotateInterval()) {
			issued, err := sessions.Rotate(c.Request.Context(), resolved)
			if err != nil {
				logger.FromContext(c).Warn().Err(err).Str("session_id", identity.SessionID).Msg("session rotation failed")
			} else if issued != nil {
				identity.SessionID = issued.Session.ID
				SetSessionCookie(c, cfg, issued)
				c.Header(SessionTokenHeader, issued.Token)
			}
		}

		c.Set(ContextUserID, identity.UserID)
		c.Set(ContextUsername, identity.Username)
		c.Set(ContextRole, identity.Role)
		c.Set(ContextSessionID, identity.SessionID)
		c.Set(ContextCSRFToken, resolved.Session.CSRFToken)

		c.Next()
	}
}

func sessionToken(c *gin.Context, cookieName string) (token string, fromCookie bool, ok bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false, false
		}
		return parts[1], false, true
	}

	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie, true, true
	}
	return "", false, false
}

// SetSessionCookie stores the session token in an HttpOnly, SameSite=Strict cookie.
func SetSessionCookie(c *gin.Context, cfg *config.SessionConfig, issued *services.IssuedSession) {
	maxAge := int(time.Until(issued.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cfg.CookieName, issued.Token, maxAge, "/", "", cfg.SecureCookie, true)
}

func ClearSessionCookie(c *gin.Context, cfg *config.SessionConfig) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cfg.CookieName, "", -1, "/", "", cfg.SecureCookie, true)
}

// AdminRequired is a middleware that checks for admin role
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists || role != models.RoleAdmin {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID gets the current user ID from context
func GetUserID(c *gin.Context) uint {
	if id, exists := c.Get(ContextUserID); exists {
		return id.(uint)
	}
	return 0
}

// GetUsername gets the current username from context
func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

// GetRole gets the current user role from context
func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}

// CurrentIdentity returns the caller set by AuthRequired, or the zero Identity.
func CurrentIdentity(c *gin.Context) services.Identity {
	return services.Identity{
		UserID:    GetUserID(c),
		Username:  GetUsername(c),
		Role:      GetRole(c),
		SessionID: c.GetString(ContextSessionID),
	}
}

// CSRFToken returns the session's CSRF token.
func CSRFToken(c *gin.Context) string {
	return c.GetString(ContextCSRFToken)
}
