package service

import (
	"context"
	"time"

	"rental/internal/domain"
	"rental/internal/geo"
)

// DeviceController controls and reads a physical device.
type DeviceController interface {
	GetDevice(ctx context.Context, code string) (*domain.Device, error)
	GetLatestStatus(ctx context.Context, code string) (*domain.DeviceStatus, error)
	GetStatusTimeline(ctx context.Context, code string, from, to time.Time) ([]*domain.DeviceStatus, error)
	Start(ctx context.Context, code string) error
	Stop(ctx context.Context, code string) error
	SetLights(ctx context.Context, code string, on bool) error
	SetLock(ctx context.Context, code string, locked bool) error
	SetMaxSpeed(ctx context.Context, code string, speed *float64) error

	// SetPhoto stores the last return photo of the device. An empty url
	// clears it.
	SetPhoto(ctx context.Context, code string, url string) error
}

// InsuranceProvider manages the per-ride insurance policy.
type InsuranceProvider interface {
	// Start opens a policy for the rider and returns its id.
	Start(ctx context.Context, ride *domain.Ride) (string, error)
	// End closes the policy as of endedAt.
	End(ctx context.Context, ride *domain.Ride, endedAt time.Time) error
	Cancel(ctx context.Context, ride *domain.Ride) error
}

// DiscountProvider resolves and transitions discounts.
type DiscountProvider interface {
	GetDiscountGroup(ctx context.Context, groupID string) (*domain.DiscountGroup, error)
	GetDiscount(ctx context.Context, groupID, discountID string) (*domain.Discount, error)
	Lock(ctx context.Context, groupID, discountID string) error
	Unlock(ctx context.Context, groupID, discountID string) error
	Use(ctx context.Context, groupID, discountID string) error
}

// TariffProvider resolves the pricing of the region a coordinate falls in.
type TariffProvider interface {
	GetTariff(ctx context.Context, p geo.Point) (*domain.Tariff, error)
	GetProfile(ctx context.Context, p geo.Point) (*domain.LocationProfile, error)
}

// EquipmentTracker reports borrowed equipment such as helmets.
type EquipmentTracker interface {
	// HasUnreturned reports whether equipment borrowed during the ride
	// was not given back.
	HasUnreturned(ctx context.Context, ride *domain.Ride) (bool, error)
}

// MessageSender delivers templated messages to riders.
type MessageSender interface {
	Send(ctx context.Context, phone, template string, fields map[string]string) error
}

// WebhookType identifies a platform webhook event.
type WebhookType string

const (
	WebhookRideEnd     WebhookType = "rideEnd"
	WebhookPayment     WebhookType = "payment"
	WebhookRefund      WebhookType = "refund"
	WebhookSpeedChange WebhookType = "speedChange"
)

// Webhook is an event dispatched to a platform.
type Webhook struct {
	Type WebhookType
	Data any
}

// Notifier dispatches webhooks to platforms.
type Notifier interface {
	Notify(ctx context.Context, platformID string, webhook Webhook) error
}

// Locker provides mutual exclusion across service instances.
type Locker interface {
	// Acquire tries to take the lock on key. When acquired is false the
	// lock is held elsewhere and release is nil.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}
