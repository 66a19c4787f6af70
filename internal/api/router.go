package api

import (
	"github.com/marovole/HearthBulter/internal/metrics"
	"github.com/marovole/HearthBulter/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func RegisterRoutes(dualWriteHandler *DualWriteHandler, diffHandler *DiffHandler, streamHandler *StreamHandler, authHandler *AuthHandler, rdb *redis.Client, requestsPerSecond int, env string) *gin.Engine {
	r := gin.New()

	// The X-Dev-Pass bypass is opt-in: only the explicit development
	// environment enables it, so "prod" secures JWT and picks the
	// production logger alike.
	devMode := env == "development"

	// Global Middleware
	r.Use(
		middleware.CorsMiddleware(),
		middleware.RequestID(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
		middleware.TraceMiddleware(),
	)
	r.SetTrustedProxies(nil)

	// Public Routes
	r.GET("/health", dualWriteHandler.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth Routes (Public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	// Auth Routes (Protected)
	authProtected := r.Group("/v1/auth")
	authProtected.Use(middleware.JWTMiddleware(devMode))
	{
		authProtected.GET("/me", authHandler.GetProfile)
		authProtected.POST("/logout", authHandler.Logout)
	}

	// Protected Routes (Control Plane)
	protected := r.Group("/v1")
	protected.Use(middleware.JWTMiddleware(devMode))

	// Rate Limiter for Write Operations
	writeLimiter := middleware.RateLimitMiddleware(rdb, requestsPerSecond)

	{
		protected.GET("/dualwrite/config", dualWriteHandler.GetConfig)
		protected.PUT("/dualwrite/config", writeLimiter, dualWriteHandler.SetConfig)
		protected.PATCH("/dualwrite/toggle", writeLimiter, dualWriteHandler.Toggle)

		protected.GET("/diffs", diffHandler.ListDiffs)
		protected.GET("/diffs/stats", diffHandler.Stats)
		protected.POST("/diffs/cleanup", writeLimiter, diffHandler.Cleanup)
		protected.GET("/diffs/stream", streamHandler.WatchDiffs)
	}
	return r
}
