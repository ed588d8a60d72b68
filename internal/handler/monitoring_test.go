package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental/internal/domain"
	"rental/internal/handler"
	"rental/internal/service"
)

func TestSetMonitoringStatus(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.terminatedRide("ride-1", testPlatformID)

	rec := s.do(t, http.MethodPost, "/internal/rides/ride-1/monitoring", map[string]any{
		"monitoringStatus": "towed_kickboard",
		"sendMessage":      true,
		"price":            30000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "TOWED_KICKBOARD", decode[handler.RideResponse](t, rec).MonitoringStatus)
	req := s.monitoring.LastRequest
	assert.Equal(t, domain.MonitoringStatusTowedKickboard, req.Status)
	assert.True(t, req.SendMessage)
	require.NotNil(t, req.Price)
	assert.Equal(t, 30000.0, *req.Price)

	rec = s.do(t, http.MethodPost, "/internal/rides/ride-1/monitoring", map[string]any{"monitoringStatus": "LOST"})
	assertError(t, rec, http.StatusBadRequest, handler.CodeFailedValidate)

	rec = s.do(t, http.MethodPost, "/internal/rides/ride-1/monitoring", map[string]any{})
	assertError(t, rec, http.StatusBadRequest, handler.CodeFailedValidate)
}

func TestListMonitoringLogs(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	s.terminatedRide("ride-1", testPlatformID)
	s.monitoring.Logs = []*domain.MonitoringLog{
		{ID: "log-2", RideID: "ride-1", LogType: domain.MonitoringLogTypeChanged, Message: "changed", CreatedAt: time.Now()},
		{ID: "log-1", RideID: "ride-1", LogType: domain.MonitoringLogTypeInfo, Message: "info", CreatedAt: time.Now()},
	}

	rec := s.do(t, http.MethodGet, "/internal/rides/ride-1/monitoring", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[handler.ListLogsResponse](t, rec)
	require.Len(t, body.Logs, 2)
	assert.Equal(t, "log-2", body.Logs[0].ID)
	assert.Equal(t, "CHANGED", body.Logs[0].LogType)
}

// ──────────────────────────────────────────────
// PRICING
// ──────────────────────────────────────────────

func TestEstimatePricing(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/v1/rides/pricing", map[string]any{
		"latitude":        37.5665,
		"longitude":       126.978,
		"minutes":         20,
		"discountGroupId": "group-1",
		"discountId":      "discount-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[handler.PricingResponse](t, rec)
	assert.Equal(t, 1500.0, body.Receipt.Total)
	assert.Equal(t, 1000.0, body.Receipt.Standard.Total)
	assert.Equal(t, 20.0, s.pricing.LastRequest.Minutes)
	assert.Equal(t, "group-1", s.pricing.LastRequest.DiscountGroupID)

	s.pricing.Error = service.ErrInvalidTerminateTime
	rec = s.do(t, http.MethodPost, "/v1/rides/pricing", map[string]any{"minutes": -1})
	assertError(t, rec, http.StatusBadRequest, handler.CodeInvalidTerminateTime)
}

// ──────────────────────────────────────────────
// WEBHOOKS
// ──────────────────────────────────────────────

func TestLowBatteryWebhook(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/webhook/lowBattery", map[string]any{
		"metricsData": map[string]any{"kickboard": map[string]any{"kickboardCode": "ABC123"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "LOW_BATTERY", decode[handler.RideResponse](t, rec).TerminatedType)
	assert.Equal(t, "ABC123", s.rides.LastDevice)

	s.rides.LowBatteryErr = service.ErrRideNotFound
	rec = s.do(t, http.MethodPost, "/webhook/lowBattery", map[string]any{
		"metricsData": map[string]any{"kickboard": map[string]any{"kickboardCode": "IDLE01"}},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodPost, "/webhook/lowBattery", map[string]any{"metricsData": map[string]any{}})
	assertError(t, rec, http.StatusBadRequest, handler.CodeFailedValidate)
}

func TestSpeedChangeWebhook(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/webhook/speedChange", map[string]any{
		"kickboard": map[string]any{"kickboardCode": "ABC123"},
		"speed":     18.5,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 18.5, s.rides.LastSpeed)

	s.rides.SpeedChangeErr = service.ErrNotificationFailed
	rec = s.do(t, http.MethodPost, "/webhook/speedChange", map[string]any{
		"kickboard": map[string]any{"kickboardCode": "ABC123"},
		"speed":     10,
	})
	assertError(t, rec, http.StatusBadGateway, handler.CodeInternalError)
}
