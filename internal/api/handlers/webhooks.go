package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orrn/labelrelay/internal/core"
	"github.com/orrn/labelrelay/internal/logging"
	"github.com/orrn/labelrelay/internal/webhook"
)

const providerEasyPost = "easypost"

// SecretSource looks up the secret a tenant's webhooks are signed with.
type SecretSource interface {
	WebhookSecret(ctx context.Context, tenantID string) (string, error)
}

type WebhookOptions struct {
	VerifySignatures bool
	SignatureHeader  string
	MaxBodyBytes     int64
}

type WebhookHandler struct {
	ingestor *core.Ingestor
	secrets  SecretSource
	opts     WebhookOptions
}

func NewWebhookHandler(ingestor *core.Ingestor, secrets SecretSource, opts WebhookOptions) *WebhookHandler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	return &WebhookHandler{ingestor: ingestor, secrets: secrets, opts: opts}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	logger := logging.FromContext(c)

	if c.Param("provider") != providerEasyPost {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "unsupported webhook provider",
		})
		return
	}
	tenantID := c.Param("tenant_id")

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error:   "payload_too_large",
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: "failed to read request body",
		})
		return
	}

	if h.opts.VerifySignatures {
		secret, err := h.secrets.WebhookSecret(c.Request.Context(), tenantID)
		if err != nil {
			logger.Error("webhook secret lookup failed", zap.String("account_id", tenantID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "database_error",
				Message: "failed to load webhook secret",
			})
			return
		}
		if secret != "" {
			if err := webhook.Verify(c.GetHeader(h.opts.SignatureHeader), body, secret); err != nil {
				logger.Warn("webhook signature rejected", zap.String("account_id", tenantID), zap.Error(err))
				c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_signature",
					Message: err.Error(),
				})
				return
			}
		}
	}

	var payload map[string]any
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || payload == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: core.ErrEmptyPayload.Error(),
		})
		return
	}

	result, err := h.ingestor.Handle(c.Request.Context(), tenantID, payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

func RegisterWebhookRoutes(router *gin.RouterGroup, handler *WebhookHandler) {
	hooks := router.Group("/webhook")
	{
		hooks.POST("/:provider", handler.Receive)
		hooks.POST("/:provider/:tenant_id", handler.Receive)
	}
}
