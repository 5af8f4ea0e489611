package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ragchat/config"
	"ragchat/infra/cache"
	"ragchat/internal/auth"
	"ragchat/internal/middleware"
)

type Handlers struct {
	Auth   *AuthHandler
	Query  *QueryHandler
	Chat   *ChatHandler
	Ingest *IngestHandler
	Health *HealthHandler
}

// NewRouter assembles the gin engine with all routes and middleware. The
// Redis QPS limiter is mounted only when a cache is configured.
func NewRouter(cfg *config.AppConfig, authService *auth.Service, redis *cache.RedisCache, h Handlers, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	if redis != nil {
		r.Use(middleware.RateLimit(redis.Client(), cfg.Redis.RateLimitQPS, log))
	}

	r.GET("/health", h.Health.Health)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.GET("/me", middleware.JwtAuth(authService), h.Auth.Me)
		authGroup.GET("/verify", middleware.JwtAuth(authService), h.Auth.Verify)
	}

	queryGroup := r.Group("/query")
	{
		queryGroup.POST("", middleware.JwtAuth(authService), h.Query.Submit)
		queryGroup.GET("/limits", middleware.JwtAuth(authService), h.Query.Limits)
		queryGroup.POST("/public", middleware.OptionalAuth(authService), h.Query.Submit)
		queryGroup.GET("/limits/public", middleware.OptionalAuth(authService), h.Query.Limits)
	}

	chats := r.Group("/chats", middleware.JwtAuth(authService))
	{
		chats.POST("", h.Chat.Create)
		chats.GET("", h.Chat.List)
		chats.GET("/search", h.Chat.Search)
		chats.GET("/statistics", h.Chat.Statistics)
		chats.GET("/:id/messages", h.Chat.Messages)
		chats.DELETE("/:id", h.Chat.Delete)
		chats.PUT("/:id/title", h.Chat.Rename)
		chats.PUT("/:id/pin", h.Chat.Pin)
		chats.PUT("/:id/archive", h.Chat.Archive)
	}

	r.POST("/ingest", middleware.AdminKey(cfg.Auth.AdminAPIKey), h.Ingest.Ingest)

	return r
}
