package service_test

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"rental/internal/domain"
	"rental/internal/service"
)

const (
	testDeviceCode = "ABC123"
	testPlatformID = "platform-1"
	seoulLat       = 37.5665
	seoulLng       = 126.9780
)

// testEnv wires every service against mocks.
type testEnv struct {
	rides     *MockRideRepository
	payments  *MockPaymentRepository
	logs      *MockMonitoringLogRepository
	devices   *MockDeviceController
	insurance *MockInsuranceProvider
	discounts *MockDiscountProvider
	tariffs   *MockTariffProvider
	equipment *MockEquipmentTracker
	notifier  *MockNotifier
	messages  *MockMessageSender
	locker    *MockLocker
	hook      *test.Hook

	pricingService    *service.PricingService
	paymentService    *service.PaymentService
	monitoringService *service.MonitoringService
	rideService       *service.RideService
}

func newTestEnv(cfg service.RideConfig) *testEnv {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	env := &testEnv{
		rides:     NewMockRideRepository(),
		payments:  NewMockPaymentRepository(),
		logs:      NewMockMonitoringLogRepository(),
		devices:   NewMockDeviceController(),
		insurance: &MockInsuranceProvider{},
		discounts: NewMockDiscountProvider(),
		tariffs: &MockTariffProvider{
			Tariff: domain.Tariff{
				RegionID:               "region-1",
				StandardPrice:          1000,
				NightlyPrice:           1500,
				StandardTime:           15,
				PerMinuteStandardPrice: 100,
				PerMinuteNightlyPrice:  150,
				SurchargePrice:         500,
			},
		},
		equipment: &MockEquipmentTracker{},
		notifier:  &MockNotifier{},
		messages:  &MockMessageSender{},
		locker:    NewMockLocker(),
		hook:      hook,
	}

	env.devices.AddDevice(
		&domain.Device{Code: testDeviceCode, Mode: domain.DeviceModeReady, FranchiseID: "franchise-1", RegionID: "region-1"},
		&domain.DeviceStatus{Latitude: seoulLat, Longitude: seoulLng, GPSValid: true, Battery: 80, CreatedAt: time.Now()},
	)

	env.pricingService = service.NewPricingService(env.tariffs, env.discounts)
	env.paymentService = service.NewPaymentService(env.payments, env.rides, env.notifier, env.insurance, logger)
	env.monitoringService = service.NewMonitoringService(env.logs, env.rides, env.paymentService, env.messages, logger)
	env.rideService = service.NewRideService(
		env.rides,
		env.devices,
		env.insurance,
		env.discounts,
		env.equipment,
		env.notifier,
		env.locker,
		env.pricingService,
		env.paymentService,
		env.monitoringService,
		cfg,
		logger,
	)

	return env
}

// addActiveRide stores an active ride on the test device that started
// the given duration ago.
func (e *testEnv) addActiveRide(id string, startedAgo time.Duration) *domain.Ride {
	startedAt := time.Now().Add(-startedAgo)
	ride := &domain.Ride{
		ID:               id,
		DeviceCode:       testDeviceCode,
		PlatformID:       testPlatformID,
		FranchiseID:      "franchise-1",
		RegionID:         "region-1",
		UserID:           "user-1",
		RealName:         "Kim",
		Phone:            "+821012345678",
		InsuranceID:      "insurance-" + id,
		MonitoringStatus: domain.MonitoringStatusBeforeConfirm,
		StartedAt:        startedAt,
		CreatedAt:        startedAt,
		UpdatedAt:        startedAt,
	}
	e.rides.AddRide(ride)
	return ride
}

// addTerminatedRide stores a ride on the test device that terminated the
// given duration ago.
func (e *testEnv) addTerminatedRide(id string, terminatedAgo time.Duration) *domain.Ride {
	ride := e.addActiveRide(id, terminatedAgo+20*time.Minute)
	ride.TerminatedAt = time.Now().Add(-terminatedAgo)
	ride.TerminatedType = domain.TerminatedTypeUserRequested
	e.rides.AddRide(ride)
	return ride
}

func nullLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

func floatPtr(v float64) *float64 {
	return &v
}
