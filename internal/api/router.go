package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orrn/labelrelay/internal/api/handlers"
	"github.com/orrn/labelrelay/internal/api/middleware"
	"github.com/orrn/labelrelay/internal/logging"
)

type RouterConfig struct {
	Webhooks *handlers.WebhookHandler
	Manage   *handlers.ManageHandler
	Auth     *middleware.AdminAuth
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logging.Recovery(cfg.Logger))
	engine.Use(logging.GinMiddleware(cfg.Logger))

	engine.GET("/health", handlers.Health)
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	handlers.RegisterWebhookRoutes(&engine.RouterGroup, cfg.Webhooks)

	manage := engine.Group("/manage")
	manage.Use(cfg.Auth.RequireAdmin())
	handlers.RegisterManageRoutes(manage, cfg.Manage)

	return engine
}
