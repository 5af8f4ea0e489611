package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ragchat/config"
	"ragchat/infra/cache"
	"ragchat/internal/domain"
)

type HealthHandler struct {
	cfg   *config.AppConfig
	redis *cache.RedisCache
	docs  domain.DocumentRepository
	pool  int
}

func NewHealthHandler(cfg *config.AppConfig, redis *cache.RedisCache, docs domain.DocumentRepository, poolSize int) *HealthHandler {
	return &HealthHandler{cfg: cfg, redis: redis, docs: docs, pool: poolSize}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	dbStatus := "ok"
	var chunks int64
	if n, err := h.docs.Count(ctx); err != nil {
		dbStatus = "unavailable"
	} else {
		chunks = n
	}

	cacheStatus := "disabled"
	if h.redis != nil {
		cacheStatus = "ok"
		if !h.redis.Healthy(ctx) {
			cacheStatus = "unavailable"
		}
	}

	status := http.StatusOK
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"service": h.cfg.ServerName,
		"version": h.cfg.Version,
		"store": gin.H{
			"status": dbStatus,
			"chunks": chunks,
		},
		"cache": gin.H{
			"status": cacheStatus,
		},
		"credential_pool_size": h.pool,
		"quota": gin.H{
			"registered_limit": h.cfg.Quota.RegisteredLimit,
			"anonymous_limit":  h.cfg.Quota.AnonymousLimit,
			"reset_window":     h.cfg.Quota.ResetWindow.String(),
		},
	})
}
