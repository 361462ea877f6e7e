package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyroom/pkg/logger"
	"github.com/samber/lo"
)

// CORS returns a CORS middleware that admits only the listed origins.
// Same-origin requests pass regardless; any other origin is refused with 403.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return lo.Contains(allowedOrigins, origin)
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", CSRFHeader, logger.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", logger.RequestIDHeader, SessionTokenHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
