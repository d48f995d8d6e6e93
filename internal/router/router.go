package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/gioe/aiq-sub010/internal/handler"
	"github.com/gioe/aiq-sub010/internal/middleware"
	"github.com/gioe/aiq-sub010/internal/response"
	"github.com/gioe/aiq-sub010/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Session *handler.SessionHandler
	Live    *handler.LiveHandler
	Ops     *handler.OpsHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Ops-Key"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check (probes Postgres and Redis).
	router.GET("/system/health", handlers.System.Health)

	// Rate limiter for session creation (per participant). Enter counts too
	// since it can start a session.
	startLimiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	// ─── 1. Session Group (Participant JWT) ────────────────────────────
	sessions := router.Group("/api/v1/sessions")
	sessions.Use(middleware.RequireParticipantJWT(authService))
	{
		sessions.POST("/enter", startLimiter.Middleware(), handlers.Session.Enter)
		sessions.POST("", startLimiter.Middleware(), handlers.Session.Start)
		sessions.POST("/:session_id/resume", handlers.Session.Resume)
		sessions.POST("/:session_id/abandon", handlers.Session.Abandon)
		sessions.POST("/:session_id/abandon-and-new", startLimiter.Middleware(), handlers.Session.AbandonAndStart)
		sessions.PUT("/:session_id/progress", handlers.Session.SaveProgress)
		sessions.POST("/:session_id/next-question", handlers.Session.NextQuestion)
		sessions.POST("/:session_id/submit", handlers.Session.Submit)
		sessions.GET("/:session_id", handlers.Session.State)
	}

	// ─── 2. Results Group (Participant JWT) ────────────────────────────
	results := router.Group("/api/v1/results")
	results.Use(middleware.RequireParticipantJWT(authService))
	{
		results.GET("/:session_id", middleware.PrivateCache(300), handlers.Session.GetResult)
	}

	// ─── 3. WebSocket Group (Participant WS Auth) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireParticipantWSAuth(authService))
	{
		ws.GET("/sessions/:session_id", handlers.Live.Stream)
	}

	// ─── 4. Ops Group (API Key) ────────────────────────────────────────
	ops := router.Group("/ops")
	ops.Use(middleware.RequireOpsKey(cfg.OpsKeyHash))
	{
		ops.GET("/results", handlers.Ops.ListResults)
		ops.GET("/results/export", handlers.Ops.ExportResults)
		ops.GET("/sessions/active", handlers.Ops.ListActiveSessions)
		ops.GET("/system/metrics", handlers.System.Metrics)
	}

	return router
}
