package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CorsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", "X-Trace-ID", "X-Dev-Pass"},
		ExposeHeaders:   []string{"X-Request-ID", "X-Trace-ID", "X-RateLimit-Remaining"},
		MaxAge:          12 * time.Hour,
	})
}
