package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"rental/internal/domain"
	"rental/internal/handler"
	"rental/internal/middleware"
	"rental/internal/service"
)

const (
	testPlatformID = "platform-1"
	otherPlatform  = "platform-2"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ──────────────────────────────────────────────
// AUTHENTICATOR
// ──────────────────────────────────────────────

type staticAuthenticator struct{}

func (staticAuthenticator) Authenticate(ctx context.Context, accessKeyID, secret string) (*domain.AccessKey, error) {
	return &domain.AccessKey{Platform: domain.Platform{ID: testPlatformID, Name: "Partner"}}, nil
}

// ──────────────────────────────────────────────
// RIDE SERVICE
// ──────────────────────────────────────────────

type fakeRideService struct {
	mu    sync.Mutex
	rides map[string]*domain.Ride

	StartError     error
	TerminateError error
	ListError      error
	LowBatteryErr  error
	SpeedChangeErr error

	LastPlatform  *domain.Platform
	LastStart     service.StartRideRequest
	LastTerminate service.TerminateRideRequest
	LastFilter    domain.RideFilter
	LastLights    *bool
	LastLock      *bool
	LastMaxSpeed  *float64
	LastDevice    string
	LastSpeed     float64

	TerminateCallCount int32
	MaxSpeedCallCount  int32
}

func newFakeRideService() *fakeRideService {
	return &fakeRideService{rides: make(map[string]*domain.Ride)}
}

func (f *fakeRideService) addRide(ride *domain.Ride) *domain.Ride {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rides[ride.ID] = ride
	return ride
}

func (f *fakeRideService) StartRide(ctx context.Context, platform *domain.Platform, req service.StartRideRequest) (*domain.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastPlatform = platform
	f.LastStart = req
	if f.StartError != nil {
		return nil, f.StartError
	}
	ride := &domain.Ride{
		ID:               "ride-new",
		DeviceCode:       req.DeviceCode,
		PlatformID:       platform.ID,
		UserID:           req.UserID,
		RealName:         req.RealName,
		Phone:            req.Phone,
		Birthday:         req.Birthday,
		MonitoringStatus: domain.MonitoringStatusBeforeConfirm,
		StartedAt:        time.Now(),
	}
	f.rides[ride.ID] = ride
	return ride, nil
}

func (f *fakeRideService) TerminateRide(ctx context.Context, ride *domain.Ride, req service.TerminateRideRequest) (*domain.Ride, error) {
	atomic.AddInt32(&f.TerminateCallCount, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastTerminate = req
	if f.TerminateError != nil {
		return nil, f.TerminateError
	}
	ride.TerminatedType = req.Type
	ride.TerminatedAt = time.Now()
	ride.Receipt = &domain.Receipt{Total: 1500, Price: 1500}
	ride.Price = 1500
	return ride, nil
}

func (f *fakeRideService) ChangeDiscount(ctx context.Context, ride *domain.Ride, groupID, discountID string) (*domain.Ride, error) {
	ride.DiscountGroupID = groupID
	ride.DiscountID = discountID
	return ride, nil
}

func (f *fakeRideService) UploadRidePhoto(ctx context.Context, ride *domain.Ride, photoURL string) (*domain.Ride, error) {
	if !ride.IsTerminated() {
		return nil, service.ErrPhotoUploadNotTerminated
	}
	ride.PhotoURL = photoURL
	return ride, nil
}

func (f *fakeRideService) SetLights(ctx context.Context, ride *domain.Ride, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastLights = &on
	return nil
}

func (f *fakeRideService) SetLock(ctx context.Context, ride *domain.Ride, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastLock = &locked
	return nil
}

func (f *fakeRideService) SetMaxSpeed(ctx context.Context, ride *domain.Ride, speed *float64) error {
	atomic.AddInt32(&f.MaxSpeedCallCount, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastMaxSpeed = speed
	return nil
}

func (f *fakeRideService) GetStatus(ctx context.Context, ride *domain.Ride) (*domain.DeviceStatus, error) {
	if ride.IsTerminated() {
		return nil, service.ErrAlreadyTerminated
	}
	return &domain.DeviceStatus{Latitude: 37.5, Longitude: 127.0, GPSValid: true, Battery: 77}, nil
}

func (f *fakeRideService) GetTimeline(ctx context.Context, ride *domain.Ride) ([]*domain.DeviceStatus, error) {
	if ride.IsTerminated() {
		return nil, service.ErrAlreadyTerminated
	}
	return []*domain.DeviceStatus{{Battery: 80}, {Battery: 79}}, nil
}

func (f *fakeRideService) GetCurrentPricing(ctx context.Context, ride *domain.Ride) (*service.PricingResult, error) {
	return &service.PricingResult{
		Receipt: domain.Receipt{Total: 1200},
		Tariff:  &domain.Tariff{RegionID: "region-1", StandardPrice: 1000},
	}, nil
}

func (f *fakeRideService) GetRide(ctx context.Context, platformID, rideID string) (*domain.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[rideID]
	if !ok || (platformID != "" && ride.PlatformID != platformID) {
		return nil, service.ErrRideNotFound
	}
	return ride, nil
}

func (f *fakeRideService) ListRides(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastFilter = filter
	if f.ListError != nil {
		return nil, 0, f.ListError
	}
	var rides []*domain.Ride
	for _, ride := range f.rides {
		rides = append(rides, ride)
	}
	return rides, len(rides), nil
}

func (f *fakeRideService) CancelInsurance(ctx context.Context, ride *domain.Ride) error {
	return nil
}

func (f *fakeRideService) HandleLowBattery(ctx context.Context, deviceCode string) (*domain.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastDevice = deviceCode
	if f.LowBatteryErr != nil {
		return nil, f.LowBatteryErr
	}
	return &domain.Ride{ID: "ride-1", DeviceCode: deviceCode, TerminatedType: domain.TerminatedTypeLowBattery}, nil
}

func (f *fakeRideService) HandleSpeedChange(ctx context.Context, deviceCode string, speed float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastDevice = deviceCode
	f.LastSpeed = speed
	return f.SpeedChangeErr
}

// ──────────────────────────────────────────────
// PAYMENT SERVICE
// ──────────────────────────────────────────────

type fakePaymentService struct {
	mu       sync.Mutex
	payments map[string]*domain.Payment

	AddError       error
	RefundAllError error

	LastAdd    service.AddPaymentRequest
	LastRefund service.RefundRequest
	LastReason string
	LastFilter domain.PaymentFilter
}

func newFakePaymentService() *fakePaymentService {
	return &fakePaymentService{payments: make(map[string]*domain.Payment)}
}

func (f *fakePaymentService) addPayment(payment *domain.Payment) *domain.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments[payment.ID] = payment
	return payment
}

func (f *fakePaymentService) AddPayment(ctx context.Context, ride *domain.Ride, req service.AddPaymentRequest) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastAdd = req
	if !req.Type.Valid() {
		return nil, service.ErrInvalidInput
	}
	if req.Amount <= 0 {
		return nil, nil
	}
	payment := &domain.Payment{ID: "payment-new", RideID: ride.ID, PaymentType: req.Type, Amount: req.Amount, InitialAmount: req.Amount}
	f.payments[payment.ID] = payment
	return payment, f.AddError
}

func (f *fakePaymentService) RefundPayment(ctx context.Context, ride *domain.Ride, payment *domain.Payment, req service.RefundRequest) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRefund = req
	amount := payment.Amount
	if req.Amount != nil {
		amount = min(*req.Amount, payment.Amount)
	}
	payment.Amount -= amount
	payment.Reason = req.Reason
	payment.RefundedAt = time.Now()
	return payment, nil
}

func (f *fakePaymentService) RefundAllPayment(ctx context.Context, ride *domain.Ride, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastReason = reason
	if f.RefundAllError != nil {
		return f.RefundAllError
	}
	for _, payment := range f.payments {
		if payment.RideID == ride.ID {
			payment.Amount = 0
			payment.RefundedAt = time.Now()
		}
	}
	return nil
}

func (f *fakePaymentService) SetProcessed(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	payment.ProcessedAt = time.Now()
	return payment, nil
}

func (f *fakePaymentService) GetPayment(ctx context.Context, rideID, paymentID string) (*domain.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payment, ok := f.payments[paymentID]
	if !ok || payment.RideID != rideID {
		return nil, service.ErrPaymentNotFound
	}
	return payment, nil
}

func (f *fakePaymentService) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastFilter = filter
	var payments []*domain.Payment
	for _, payment := range f.payments {
		if filter.RideID == "" || payment.RideID == filter.RideID {
			payments = append(payments, payment)
		}
	}
	return payments, len(payments), nil
}

// ──────────────────────────────────────────────
// PRICING, MONITORING, PLATFORMS
// ──────────────────────────────────────────────

type fakePricingService struct {
	LastRequest service.PricingRequest
	Error       error
}

func (f *fakePricingService) GetPricing(ctx context.Context, req service.PricingRequest) (*service.PricingResult, error) {
	f.LastRequest = req
	if f.Error != nil {
		return nil, f.Error
	}
	return &service.PricingResult{
		Receipt: domain.Receipt{
			Standard:  domain.ReceiptUnit{Price: 1000, Total: 1000},
			PerMinute: domain.ReceiptUnit{Price: 500, Total: 500},
			Price:     1500,
			Total:     1500,
		},
		Tariff: &domain.Tariff{RegionID: "region-1", StandardPrice: 1000},
	}, nil
}

type fakeMonitoringService struct {
	LastRequest service.SetMonitoringStatusRequest
	Logs        []*domain.MonitoringLog
}

func (f *fakeMonitoringService) ListLogs(ctx context.Context, ride *domain.Ride) ([]*domain.MonitoringLog, error) {
	return f.Logs, nil
}

func (f *fakeMonitoringService) SetMonitoringStatus(ctx context.Context, ride *domain.Ride, req service.SetMonitoringStatusRequest) (*domain.Ride, error) {
	f.LastRequest = req
	if !req.Status.Valid() {
		return nil, service.ErrInvalidInput
	}
	ride.MonitoringStatus = req.Status
	return ride, nil
}

type fakePlatforms struct {
	CallCount int32
}

func (f *fakePlatforms) GetPlatform(ctx context.Context, platformID string) (*domain.Platform, error) {
	atomic.AddInt32(&f.CallCount, 1)
	if platformID != otherPlatform {
		return nil, service.ErrUnauthorized
	}
	return &domain.Platform{ID: platformID, Name: "Other"}, nil
}

// ──────────────────────────────────────────────
// ROUTER
// ──────────────────────────────────────────────

type testServer struct {
	router     *gin.Engine
	rides      *fakeRideService
	payments   *fakePaymentService
	pricing    *fakePricingService
	monitoring *fakeMonitoringService
	platforms  *fakePlatforms
}

// newTestServer mounts the handlers under /v1 (platform scoped) and
// /internal (unscoped) the way the application router does.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger, _ := test.NewNullLogger()
	s := &testServer{
		router:     gin.New(),
		rides:      newFakeRideService(),
		payments:   newFakePaymentService(),
		pricing:    &fakePricingService{},
		monitoring: &fakeMonitoringService{},
		platforms:  &fakePlatforms{},
	}

	rideHandler := handler.NewRideHandler(s.rides, s.platforms)
	paymentHandler := handler.NewPaymentHandler(s.payments, s.rides)
	pricingHandler := handler.NewPricingHandler(s.pricing)
	monitoringHandler := handler.NewMonitoringHandler(s.monitoring, s.rides)
	webhookHandler := handler.NewWebhookHandler(s.rides)

	mount := func(rides *gin.RouterGroup) {
		rides.GET("", rideHandler.ListRides)
		rides.POST("", rideHandler.StartRide)
		rides.GET("/:rideId", rideHandler.GetRide)
		rides.DELETE("/:rideId", rideHandler.TerminateRide)
		rides.POST("/:rideId/discount", rideHandler.ChangeDiscount)
		rides.POST("/:rideId/photo", rideHandler.UploadPhoto)
		rides.GET("/:rideId/status", rideHandler.GetStatus)
		rides.GET("/:rideId/timeline", rideHandler.GetTimeline)
		rides.GET("/:rideId/pricing", rideHandler.GetPricing)
		rides.GET("/:rideId/lights/:state", rideHandler.SetLights)
		rides.GET("/:rideId/lock/:state", rideHandler.SetLock)
		rides.PUT("/:rideId/maxSpeed", rideHandler.SetMaxSpeed)
		rides.GET("/:rideId/payments", paymentHandler.ListRidePayments)
		rides.POST("/:rideId/payments", paymentHandler.AddPayment)
		rides.DELETE("/:rideId/payments", paymentHandler.RefundAllPayment)
		rides.GET("/:rideId/payments/:paymentId", paymentHandler.GetPayment)
		rides.GET("/:rideId/payments/:paymentId/process", paymentHandler.SetProcessed)
		rides.DELETE("/:rideId/payments/:paymentId", paymentHandler.RefundPayment)
	}

	v1 := s.router.Group("/v1", middleware.PlatformAuth(staticAuthenticator{}, logger))
	v1.POST("/rides/pricing", pricingHandler.GetPricing)
	mount(v1.Group("/rides"))

	internal := s.router.Group("/internal")
	mount(internal.Group("/rides"))
	internal.GET("/rides/:rideId/monitoring", monitoringHandler.ListLogs)
	internal.POST("/rides/:rideId/monitoring", monitoringHandler.SetMonitoringStatus)
	internal.GET("/payments", paymentHandler.ListPayments)

	s.router.POST("/webhook/lowBattery", webhookHandler.LowBattery)
	s.router.POST("/webhook/speedChange", webhookHandler.SpeedChange)

	return s
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) activeRide(id, platformID string) *domain.Ride {
	return s.rides.addRide(&domain.Ride{
		ID:               id,
		DeviceCode:       "ABC123",
		PlatformID:       platformID,
		UserID:           "user-1",
		MonitoringStatus: domain.MonitoringStatusBeforeConfirm,
		StartedAt:        time.Now().Add(-10 * time.Minute),
		StartedPhoneLocation: &domain.Location{
			Latitude:  37.5665,
			Longitude: 126.978,
			Geohash:   "wydm9qy",
		},
	})
}

func (s *testServer) terminatedRide(id, platformID string) *domain.Ride {
	ride := s.activeRide(id, platformID)
	ride.TerminatedAt = time.Now()
	ride.TerminatedType = domain.TerminatedTypeUserRequested
	return ride
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	body := decode[handler.ErrorResponse](t, rec)
	require.Equal(t, code, body.Code)
}
