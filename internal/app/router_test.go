package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental/internal/domain"
	"rental/internal/handler"
	"rental/internal/middleware"
	"rental/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type keyAuthenticator struct {
	permissions []string
}

func (a keyAuthenticator) Authenticate(ctx context.Context, accessKeyID, secret string) (*domain.AccessKey, error) {
	if accessKeyID != "key" || secret != "secret" {
		return nil, service.ErrUnauthorized
	}
	return &domain.AccessKey{Platform: domain.Platform{ID: "platform-1"}, Permissions: a.permissions}, nil
}

// newTestRouter builds the router with nil services; every request in
// these tests is rejected before reaching a handler.
func newTestRouter(t *testing.T, permissions ...string) *gin.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	logger, _ := test.NewNullLogger()

	return NewRouter(RouterDeps{
		RideHandler:       handler.NewRideHandler(nil, nil),
		PaymentHandler:    handler.NewPaymentHandler(nil, nil),
		PricingHandler:    handler.NewPricingHandler(nil),
		MonitoringHandler: handler.NewMonitoringHandler(nil, nil),
		WebhookHandler:    handler.NewWebhookHandler(nil),
		Authenticator:     keyAuthenticator{permissions: permissions},
		InternalAPIKey:    "internal-key",
		RedisClient:       rdb,
		Logger:            logger,
	})
}

func serve(router http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	rec := serve(newTestRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouter_PlatformRoutesRequireAccessKey(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	rec := serve(router, http.MethodGet, "/v1/rides/ride-1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodGet, "/v1/rides/ride-1", map[string]string{
		middleware.PlatformAccessKeyIDHeader:     "key",
		middleware.PlatformSecretAccessKeyHeader: "secret",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, "key without rides.view")
}

func TestRouter_InternalRoutesRequireInternalKey(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/internal/rides"},
		{http.MethodGet, "/internal/payments"},
		{http.MethodPost, "/internal/rides/ride-1/monitoring"},
		{http.MethodPost, "/webhook/lowBattery"},
		{http.MethodPost, "/webhook/speedChange"},
	} {
		rec := serve(router, route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, route.path)
	}

	rec := serve(router, http.MethodGet, "/internal/rides", map[string]string{
		middleware.PlatformAccessKeyIDHeader:     "key",
		middleware.PlatformSecretAccessKeyHeader: "secret",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "platform keys do not open internal routes")
}

func TestCollectionOf(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tests := []struct {
		cmd  redis.Cmder
		want string
	}{
		{redis.NewStringCmd(ctx, "get", "lock:ride:1"), "lock"},
		{redis.NewStringCmd(ctx, "get", "cache:platform:abc"), "cache"},
		{redis.NewStringCmd(ctx, "get", "plain"), "redis"},
		{redis.NewStatusCmd(ctx, "ping"), "redis"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, collectionOf(tt.cmd))
	}
}
