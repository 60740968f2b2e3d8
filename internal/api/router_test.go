package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/orrn/labelrelay/internal/api/handlers"
	"github.com/orrn/labelrelay/internal/api/middleware"
	"github.com/orrn/labelrelay/internal/core"
	"github.com/orrn/labelrelay/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type emptyStore struct{}

func (emptyStore) GetAccount(context.Context, string) (*core.TenantAccount, error) {
	return nil, core.ErrAccountNotFound
}

func (emptyStore) ListAccounts(context.Context) ([]core.TenantAccount, error) { return nil, nil }

func (emptyStore) ListPrinters(context.Context, string) ([]core.PrinterConfig, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, auth *middleware.AdminAuth) (*gin.Engine, *metrics.Metrics) {
	t.Helper()
	m := metrics.New()
	resolver := core.NewResolver(emptyStore{}, func(string) (core.ShippingClient, error) {
		return nil, core.ErrMissingCredential
	}, core.LegacyConfig{}, nil)
	pipeline := core.NewPipeline(
		resolver,
		core.NewFetcher(core.NewHTTPDownloader(0), nil),
		core.NewNormalizer(nil),
		core.NewDispatcher(func(string) (core.PrintClient, error) { return nil, core.ErrMissingCredential }, nil),
		core.WithRecorder(m),
	)

	return NewRouter(RouterConfig{
		Webhooks: handlers.NewWebhookHandler(core.NewIngestor(pipeline, nil), resolver, handlers.WebhookOptions{}),
		Manage:   handlers.NewManageHandler(resolver),
		Auth:     auth,
		Metrics:  m.Handler(),
		Logger:   zap.NewNop(),
	}), m
}

func serve(r http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthAndRequestID(t *testing.T) {
	r, _ := newTestRouter(t, middleware.NewAdminAuth("", "", 0))

	w := serve(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_MetricsExposeEvents(t *testing.T) {
	r, _ := newTestRouter(t, middleware.NewAdminAuth("", "", 0))

	w := serve(r, http.MethodPost, "/webhook/easypost", `{"description":"batch.created"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `labelrelay_events_total{event_type="batch.created",outcome="acknowledged"} 1`)
}

func TestRouter_LegacyWithoutConfigurationFails(t *testing.T) {
	r, _ := newTestRouter(t, middleware.NewAdminAuth("", "", 0))

	w := serve(r, http.MethodPost, "/webhook/easypost", `{"description":"tracker.created","result":{"id":"trk_1"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no shipping configuration found")
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRouter_ManageRequiresAuth(t *testing.T) {
	r, _ := newTestRouter(t, middleware.NewAdminAuth("", "", 0))
	w := serve(r, http.MethodPost, "/manage/cache/invalidate", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r, _ = newTestRouter(t, middleware.NewAdminAuth("admin-key", "", 0))
	w = serve(r, http.MethodPost, "/manage/cache/invalidate", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodPost, "/manage/cache/invalidate/acct_1", "", map[string]string{middleware.APIKeyHeader: "admin-key"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_PanicBecomes500(t *testing.T) {
	r, _ := newTestRouter(t, middleware.NewAdminAuth("", "", 0))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"internal server error"}`, w.Body.String())
}
