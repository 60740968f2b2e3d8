package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orrn/labelrelay/internal/logging"
)

// CacheInvalidator drops cached provider clients after account changes.
type CacheInvalidator interface {
	Invalidate(tenantID string)
	InvalidateAll()
}

type ManageHandler struct {
	cache CacheInvalidator
}

func NewManageHandler(cache CacheInvalidator) *ManageHandler {
	return &ManageHandler{cache: cache}
}

func (h *ManageHandler) InvalidateAll(c *gin.Context) {
	h.cache.InvalidateAll()
	logging.FromContext(c).Info("client cache cleared")
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Client cache cleared",
	})
}

func (h *ManageHandler) InvalidateTenant(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	h.cache.Invalidate(tenantID)
	logging.FromContext(c).Info("client cache entry cleared", zap.String("account_id", tenantID))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Client cache cleared for account %s", tenantID),
	})
}

func RegisterManageRoutes(router *gin.RouterGroup, handler *ManageHandler) {
	cache := router.Group("/cache")
	{
		cache.POST("/invalidate", handler.InvalidateAll)
		cache.POST("/invalidate/:tenant_id", handler.InvalidateTenant)
	}
}
