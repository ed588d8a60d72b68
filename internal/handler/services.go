package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"rental/internal/domain"
	"rental/internal/middleware"
	"rental/internal/service"
)

// RideService is the ride behaviour the handlers depend on.
type RideService interface {
	StartRide(ctx context.Context, platform *domain.Platform, req service.StartRideRequest) (*domain.Ride, error)
	TerminateRide(ctx context.Context, ride *domain.Ride, req service.TerminateRideRequest) (*domain.Ride, error)
	ChangeDiscount(ctx context.Context, ride *domain.Ride, groupID, discountID string) (*domain.Ride, error)
	UploadRidePhoto(ctx context.Context, ride *domain.Ride, photoURL string) (*domain.Ride, error)
	SetLights(ctx context.Context, ride *domain.Ride, on bool) error
	SetLock(ctx context.Context, ride *domain.Ride, locked bool) error
	SetMaxSpeed(ctx context.Context, ride *domain.Ride, speed *float64) error
	GetStatus(ctx context.Context, ride *domain.Ride) (*domain.DeviceStatus, error)
	GetTimeline(ctx context.Context, ride *domain.Ride) ([]*domain.DeviceStatus, error)
	GetCurrentPricing(ctx context.Context, ride *domain.Ride) (*service.PricingResult, error)
	GetRide(ctx context.Context, platformID, rideID string) (*domain.Ride, error)
	ListRides(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, int, error)
	CancelInsurance(ctx context.Context, ride *domain.Ride) error
	HandleLowBattery(ctx context.Context, deviceCode string) (*domain.Ride, error)
	HandleSpeedChange(ctx context.Context, deviceCode string, speed float64) error
}

// PaymentService is the payment ledger behaviour the handlers depend on.
type PaymentService interface {
	AddPayment(ctx context.Context, ride *domain.Ride, req service.AddPaymentRequest) (*domain.Payment, error)
	RefundPayment(ctx context.Context, ride *domain.Ride, payment *domain.Payment, req service.RefundRequest) (*domain.Payment, error)
	RefundAllPayment(ctx context.Context, ride *domain.Ride, reason string) error
	SetProcessed(ctx context.Context, payment *domain.Payment) (*domain.Payment, error)
	GetPayment(ctx context.Context, rideID, paymentID string) (*domain.Payment, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error)
}

// PricingService estimates fares.
type PricingService interface {
	GetPricing(ctx context.Context, req service.PricingRequest) (*service.PricingResult, error)
}

// MonitoringService is the monitoring workflow behaviour the handlers
// depend on.
type MonitoringService interface {
	ListLogs(ctx context.Context, ride *domain.Ride) ([]*domain.MonitoringLog, error)
	SetMonitoringStatus(ctx context.Context, ride *domain.Ride, req service.SetMonitoringStatusRequest) (*domain.Ride, error)
}

// PlatformResolver looks platforms up by id for internal callers.
type PlatformResolver interface {
	GetPlatform(ctx context.Context, platformID string) (*domain.Platform, error)
}

var (
	_ RideService       = (*service.RideService)(nil)
	_ PaymentService    = (*service.PaymentService)(nil)
	_ PricingService    = (*service.PricingService)(nil)
	_ MonitoringService = (*service.MonitoringService)(nil)
)

type rideGetter interface {
	GetRide(ctx context.Context, platformID, rideID string) (*domain.Ride, error)
}

// platformScope returns the platform the caller is restricted to. Internal
// routes carry no access key and see every platform.
func platformScope(c *gin.Context) string {
	key, ok := middleware.AccessKeyFrom(c)
	if !ok {
		return ""
	}
	return key.Platform.ID
}

// loadRide resolves the :rideId path parameter within the caller's scope.
// It writes the error response and returns false when the ride is missing.
func loadRide(c *gin.Context, rides rideGetter) (*domain.Ride, bool) {
	ride, err := rides.GetRide(c.Request.Context(), platformScope(c), c.Param("rideId"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return ride, true
}
