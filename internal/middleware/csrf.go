package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/internal/utils"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/huangang/studyroom/pkg/response"
)

const (
	CSRFHeader    = "X-CSRF-Token"
	CSRFFormField = "csrf_token"
)

// CSRFRequired rejects unsafe requests that do not echo the session's CSRF
// token in the X-CSRF-Token header or the csrf_token form field. It must run
// after AuthRequired.
func CSRFRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		sent := c.GetHeader(CSRFHeader)
		if sent == "" {
			sent = c.PostForm(CSRFFormField)
		}

		if !utils.SecureCompare(sent, CSRFToken(c)) {
			logger.FromContext(c).Warn().
				Uint(ContextUserID, GetUserID(c)).
				Str("path", c.Request.URL.Path).
				Msg("csrf token mismatch")
			response.Forbidden(c, "invalid CSRF token")
			c.Abort()
			return
		}
		c.Next()
	}
}
