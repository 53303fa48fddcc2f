package api

import (
	"github.com/gin-gonic/gin"

	"github.com/youruser/bannerprint/internal/config"
)

// NewEngine builds the gin engine with the service middleware stack.
func NewEngine(cfg config.ServerConfig, h *Handler) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(), CORS(cfg.CORSOrigins), BodyLimit(cfg.MaxBodyBytes))

	var limit []gin.HandlerFunc
	if cfg.RateLimitPerMinute > 0 {
		limit = append(limit, PerMinute(cfg.RateLimitPerMinute, cfg.RateLimitBurst).RateLimit())
	}
	RegisterRoutes(r, h, limit...)
	return r
}
