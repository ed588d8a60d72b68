package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/geo"
	"rental/internal/repository"
)

const (
	defaultMaxStartDistance  = 300.0
	defaultPhotoUploadWindow = 30 * time.Minute
	defaultLockTTL           = 90 * time.Second
	// terminateCallBudget bounds the collaborator calls one terminate can
	// make, compensations included.
	terminateCallBudget = 16
	maxSpeedLimit            = 20.0

	surchargeDescription     = "out of service area return"
	equipmentLossDescription = "borrowed helmet not returned"
)

var phonePattern = regexp.MustCompile(`^\+\d*$`)

// RideConfig holds the tunables of the ride state machine.
type RideConfig struct {
	// MaxStartDistance is the maximum distance in metres between the
	// rider and the device at start.
	MaxStartDistance float64

	// AllowDebugBypass lets callers skip the proximity check.
	AllowDebugBypass bool

	PhotoUploadWindow time.Duration

	// LockTTL is raised to cover terminateCallBudget calls of CallTimeout
	// each, so the lock cannot expire mid-saga.
	LockTTL     time.Duration
	CallTimeout time.Duration
}

func (c RideConfig) withDefaults() RideConfig {
	if c.MaxStartDistance <= 0 {
		c.MaxStartDistance = defaultMaxStartDistance
	}
	if c.PhotoUploadWindow <= 0 {
		c.PhotoUploadWindow = defaultPhotoUploadWindow
	}
	if c.LockTTL <= 0 {
		c.LockTTL = defaultLockTTL
	}
	if budget := c.CallTimeout * terminateCallBudget; c.LockTTL < budget {
		c.LockTTL = budget
	}
	return c
}

// RideService owns the start and terminate protocol of rides.
type RideService struct {
	rideRepo   repository.RideRepository
	devices    DeviceController
	insurance  InsuranceProvider
	discounts  DiscountProvider
	equipment  EquipmentTracker
	notifier   Notifier
	locker     Locker
	pricing    *PricingService
	payments   *PaymentService
	monitoring *MonitoringService
	cfg        RideConfig
	logger     logrus.FieldLogger
}

// NewRideService creates a new RideService.
func NewRideService(
	rideRepo repository.RideRepository,
	devices DeviceController,
	insurance InsuranceProvider,
	discounts DiscountProvider,
	equipment EquipmentTracker,
	notifier Notifier,
	locker Locker,
	pricing *PricingService,
	payments *PaymentService,
	monitoring *MonitoringService,
	cfg RideConfig,
	logger logrus.FieldLogger,
) *RideService {
	return &RideService{
		rideRepo:   rideRepo,
		devices:    devices,
		insurance:  insurance,
		discounts:  discounts,
		equipment:  equipment,
		notifier:   notifier,
		locker:     locker,
		pricing:    pricing,
		payments:   payments,
		monitoring: monitoring,
		cfg:        cfg.withDefaults(),
		logger:     logger,
	}
}

// StartRideRequest contains the parameters for starting a ride.
type StartRideRequest struct {
	DeviceCode string
	UserID     string
	RealName   string
	Phone      string
	Birthday   time.Time
	Lat        float64
	Lng        float64

	DiscountGroupID string
	DiscountID      string

	// Debug skips the proximity check when the service allows it.
	Debug bool
}

// StartRide rents the device to the rider. Nothing is persisted unless
// every critical step succeeds; completed steps are undone on failure.
func (s *RideService) StartRide(ctx context.Context, platform *domain.Platform, req StartRideRequest) (*domain.Ride, error) {
	req.DeviceCode = strings.ToUpper(strings.TrimSpace(req.DeviceCode))
	if err := validateStartRequest(req); err != nil {
		return nil, err
	}

	release, err := s.acquire(ctx, deviceLockKey(req.DeviceCode))
	if err != nil {
		return nil, err
	}
	defer release()

	now := time.Now()
	phonePoint := geo.Point{Lat: req.Lat, Lng: req.Lng}
	ride := &domain.Ride{
		ID:                   uuid.New().String(),
		DeviceCode:           req.DeviceCode,
		PlatformID:           platform.ID,
		UserID:               req.UserID,
		RealName:             req.RealName,
		Phone:                req.Phone,
		Birthday:             req.Birthday,
		DiscountGroupID:      req.DiscountGroupID,
		DiscountID:           req.DiscountID,
		StartedPhoneLocation: newLocation(phonePoint, now),
		MonitoringStatus:     domain.MonitoringStatusBeforeConfirm,
		StartedAt:            now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	logger := s.logger.WithFields(logrus.Fields{
		"ride_id":     ride.ID,
		"device_code": ride.DeviceCode,
		"platform_id": platform.ID,
	})

	steps := []step{
		{
			name:     "check-device",
			critical: true,
			run: func(ctx context.Context) error {
				device, err := s.devices.GetDevice(ctx, ride.DeviceCode)
				if err != nil {
					return err
				}
				if device.Mode != domain.DeviceModeReady {
					return ErrDeviceInUse
				}

				if _, err := s.rideRepo.GetActiveByDevice(ctx, ride.DeviceCode); err == nil {
					return ErrDeviceInUse
				} else if !errors.Is(err, repository.ErrNotFound) {
					return err
				}

				ride.FranchiseID = device.FranchiseID
				ride.RegionID = device.RegionID
				return nil
			},
		},
		{
			name:     "check-proximity",
			critical: true,
			run: func(ctx context.Context) error {
				status, err := s.devices.GetLatestStatus(ctx, ride.DeviceCode)
				if err != nil {
					return err
				}

				devicePoint := geo.Point{Lat: status.Latitude, Lng: status.Longitude}
				if status.GPSValid {
					ride.StartedDeviceLocation = newLocation(devicePoint, now)
				}

				if req.Debug && s.cfg.AllowDebugBypass {
					logger.WithField("user_id", ride.UserID).Warn("proximity check bypassed by debug flag")
					return nil
				}

				if status.GPSValid && geo.Distance(phonePoint, devicePoint) > s.cfg.MaxStartDistance {
					return ErrDeviceTooFar
				}
				return nil
			},
		},
		{
			name:     "start-device",
			critical: true,
			run: func(ctx context.Context) error {
				return s.devices.Start(ctx, ride.DeviceCode)
			},
			compensate: func(ctx context.Context) error {
				return s.devices.Stop(ctx, ride.DeviceCode)
			},
		},
		{
			name: "clear-photo",
			run: func(ctx context.Context) error {
				return s.devices.SetPhoto(ctx, ride.DeviceCode, "")
			},
		},
		{
			name:     "lock-discount",
			critical: true,
			run: func(ctx context.Context) error {
				if !ride.HasDiscount() {
					return nil
				}
				return s.discounts.Lock(ctx, ride.DiscountGroupID, ride.DiscountID)
			},
			compensate: func(ctx context.Context) error {
				if !ride.HasDiscount() {
					return nil
				}
				return s.discounts.Unlock(ctx, ride.DiscountGroupID, ride.DiscountID)
			},
		},
		{
			name:     "start-insurance",
			critical: true,
			run: func(ctx context.Context) error {
				insuranceID, err := s.insurance.Start(ctx, ride)
				if err != nil {
					return err
				}
				ride.InsuranceID = insuranceID
				return nil
			},
			compensate: func(ctx context.Context) error {
				return s.insurance.Cancel(ctx, ride)
			},
		},
		{
			name:     "persist-ride",
			critical: true,
			run: func(ctx context.Context) error {
				return s.rideRepo.Create(ctx, ride)
			},
		},
	}

	if err := runSteps(ctx, logger, steps); err != nil {
		return nil, err
	}

	logger.Info("ride started")
	return ride, nil
}

func validateStartRequest(req StartRideRequest) error {
	if req.DeviceCode == "" {
		return fmt.Errorf("%w: device code is required", ErrInvalidInput)
	}
	if req.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if req.RealName == "" {
		return fmt.Errorf("%w: real name is required", ErrInvalidInput)
	}
	if !phonePattern.MatchString(req.Phone) {
		return fmt.Errorf("%w: phone must be in +<digits> form", ErrInvalidInput)
	}
	if !(geo.Point{Lat: req.Lat, Lng: req.Lng}).Valid() {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	return validateDiscountPair(req.DiscountGroupID, req.DiscountID)
}

// TerminateRideRequest contains the parameters for terminating a ride.
type TerminateRideRequest struct {
	// Type defaults to USER_REQUESTED.
	Type domain.TerminatedType

	// TerminatedAt defaults to now.
	TerminatedAt time.Time

	// Rider coordinates at termination, if known.
	Lat *float64
	Lng *float64
}

// TerminateRide ends the ride, settles its fare and persists the receipt.
// A failure after the device stopped leaves the ride active so the call
// can be retried.
func (s *RideService) TerminateRide(ctx context.Context, ride *domain.Ride, req TerminateRideRequest) (*domain.Ride, error) {
	if ride.IsTerminated() {
		return nil, ErrAlreadyTerminated
	}

	if req.Type == "" {
		req.Type = domain.TerminatedTypeUserRequested
	}
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown terminate type %q", ErrInvalidInput, req.Type)
	}

	terminatedAt := req.TerminatedAt
	if terminatedAt.IsZero() {
		terminatedAt = time.Now()
	}
	if terminatedAt.Before(ride.StartedAt) {
		return nil, ErrInvalidTerminateTime
	}

	var phoneLocation *domain.Location
	if req.Lat != nil || req.Lng != nil {
		if req.Lat == nil || req.Lng == nil {
			return nil, fmt.Errorf("%w: both latitude and longitude are required", ErrInvalidInput)
		}
		point := geo.Point{Lat: *req.Lat, Lng: *req.Lng}
		if !point.Valid() {
			return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
		}
		phoneLocation = newLocation(point, terminatedAt)
	}

	release, err := s.acquire(ctx, rideLockKey(ride.ID))
	if err != nil {
		return nil, err
	}
	defer release()

	// Another instance may have finished terminating before the lock was ours.
	current, err := s.rideRepo.GetByID(ctx, ride.ID)
	if err != nil {
		return nil, err
	}
	if current.IsTerminated() {
		return nil, ErrAlreadyTerminated
	}
	*ride = *current

	logger := s.logger.WithFields(logrus.Fields{
		"ride_id":     ride.ID,
		"device_code": ride.DeviceCode,
	})

	var (
		deviceLocation *domain.Location
		pricePoint     geo.Point
		result         *PricingResult
		receipt        domain.Receipt
	)

	steps := []step{
		{
			name:     "read-device-gps",
			critical: true,
			run: func(ctx context.Context) error {
				status, err := s.devices.GetLatestStatus(ctx, ride.DeviceCode)
				if err != nil {
					return err
				}

				switch {
				case status.GPSValid:
					pricePoint = geo.Point{Lat: status.Latitude, Lng: status.Longitude}
					deviceLocation = newLocation(pricePoint, terminatedAt)
				case phoneLocation != nil:
					pricePoint = geo.Point{Lat: phoneLocation.Latitude, Lng: phoneLocation.Longitude}
				default:
					return fmt.Errorf("%w: no valid location to price the ride", ErrInvalidInput)
				}
				return nil
			},
		},
		{
			name:     "lights-off",
			critical: true,
			run: func(ctx context.Context) error {
				return s.devices.SetLights(ctx, ride.DeviceCode, false)
			},
		},
		{
			name:     "stop-device",
			critical: true,
			run: func(ctx context.Context) error {
				return s.devices.Stop(ctx, ride.DeviceCode)
			},
		},
		{
			name:     "use-discount",
			critical: true,
			run: func(ctx context.Context) error {
				if !ride.HasDiscount() {
					return nil
				}
				return s.discounts.Use(ctx, ride.DiscountGroupID, ride.DiscountID)
			},
		},
		{
			name: "end-insurance",
			run: func(ctx context.Context) error {
				return s.insurance.End(ctx, ride, terminatedAt)
			},
		},
		{
			name:     "compute-receipt",
			critical: true,
			run: func(ctx context.Context) error {
				priced, err := s.pricing.GetPricingByRide(ctx, ride, pricePoint.Lat, pricePoint.Lng, terminatedAt)
				if err != nil {
					return err
				}

				result = priced
				receipt = priced.Receipt
				receipt.ID = uuid.New().String()
				receipt.RideID = ride.ID
				receipt.CreatedAt = terminatedAt
				return nil
			},
		},
		s.bookingStep(logger, "book-service", ride, func() AddPaymentRequest {
			return AddPaymentRequest{
				Type:   domain.PaymentTypeService,
				Amount: receipt.Total - receipt.Surcharge.Total,
			}
		}),
		s.bookingStep(logger, "book-surcharge", ride, func() AddPaymentRequest {
			return AddPaymentRequest{
				Type:        domain.PaymentTypeSurcharge,
				Amount:      receipt.Surcharge.Total,
				Description: surchargeDescription,
			}
		}),
		s.equipmentLossStep(logger, ride, func() *domain.Tariff { return result.Tariff }),
		{
			name: "monitoring-log",
			run: func(ctx context.Context) error {
				if s.monitoring == nil {
					return nil
				}
				_, err := s.monitoring.AddLog(ctx, ride, domain.MonitoringLogTypeInfo, "ride terminated")
				return err
			},
		},
		{
			name:     "persist-termination",
			critical: true,
			run: func(ctx context.Context) error {
				terminated := *ride
				terminated.TerminatedAt = terminatedAt
				terminated.TerminatedType = req.Type
				terminated.TerminatedPhoneLocation = phoneLocation
				terminated.TerminatedDeviceLocation = deviceLocation
				terminated.Receipt = &receipt

				if err := s.rideRepo.Terminate(ctx, &terminated); err != nil {
					if errors.Is(err, repository.ErrConflict) {
						return ErrAlreadyTerminated
					}
					return err
				}

				*ride = terminated
				return nil
			},
		},
		{
			name: "notify-ride-end",
			run: func(ctx context.Context) error {
				return s.notify(ctx, ride, WebhookRideEnd, rideWebhookData(ride))
			},
		},
	}

	if err := runSteps(ctx, logger, steps); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"terminated_type": ride.TerminatedType,
		"total":           receipt.Total,
	}).Info("ride terminated")
	return ride, nil
}

// bookingStep books a payment built at run time. The booked payment is
// refunded if the termination is abandoned later.
func (s *RideService) bookingStep(logger logrus.FieldLogger, name string, ride *domain.Ride, build func() AddPaymentRequest) step {
	var booked *domain.Payment

	return step{
		name:     name,
		critical: true,
		run: func(ctx context.Context) error {
			payment, err := s.payments.AddPayment(ctx, ride, build())
			if err != nil {
				if !errors.Is(err, ErrNotificationFailed) {
					return err
				}
				logger.WithError(err).WithField("step", name).Warn("payment booked without notification")
			}
			booked = payment
			return nil
		},
		compensate: func(ctx context.Context) error {
			if booked == nil {
				return nil
			}
			_, err := s.payments.RefundPayment(ctx, ride, booked, RefundRequest{Reason: "ride termination aborted"})
			if errors.Is(err, ErrNotificationFailed) {
				return nil
			}
			return err
		},
	}
}

func (s *RideService) equipmentLossStep(logger logrus.FieldLogger, ride *domain.Ride, tariff func() *domain.Tariff) step {
	booking := s.bookingStep(logger, "book-equipment-loss", ride, func() AddPaymentRequest {
		return AddPaymentRequest{
			Type:        domain.PaymentTypeSurcharge,
			Amount:      *tariff().HelmetLostPrice,
			Description: equipmentLossDescription,
		}
	})

	run := booking.run
	booking.run = func(ctx context.Context) error {
		if s.equipment == nil || tariff() == nil || tariff().HelmetLostPrice == nil {
			return nil
		}

		unreturned, err := s.equipment.HasUnreturned(ctx, ride)
		if err != nil {
			return err
		}
		if !unreturned {
			return nil
		}
		return run(ctx)
	}

	return booking
}

// ChangeDiscount replaces the discount attached to an active ride. Empty
// ids detach the current discount.
func (s *RideService) ChangeDiscount(ctx context.Context, ride *domain.Ride, groupID, discountID string) (*domain.Ride, error) {
	if ride.IsTerminated() {
		return nil, ErrAlreadyTerminated
	}

	if err := validateDiscountPair(groupID, discountID); err != nil {
		return nil, err
	}

	if ride.DiscountGroupID == groupID && ride.DiscountID == discountID {
		return ride, nil
	}

	if groupID != "" {
		if _, err := s.discounts.GetDiscount(ctx, groupID, discountID); err != nil {
			return nil, err
		}
	}

	previous := *ride
	ride.DiscountGroupID = groupID
	ride.DiscountID = discountID

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}

	if previous.HasDiscount() {
		run(func() error {
			return s.discounts.Unlock(ctx, previous.DiscountGroupID, previous.DiscountID)
		})
	}
	if ride.HasDiscount() {
		run(func() error {
			return s.discounts.Lock(ctx, groupID, discountID)
		})
	}
	run(func() error {
		return s.rideRepo.Update(ctx, ride)
	})

	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		ride.DiscountGroupID = previous.DiscountGroupID
		ride.DiscountID = previous.DiscountID
		return nil, err
	}

	return ride, nil
}

// UploadRidePhoto stores the return photo of a terminated ride.
func (s *RideService) UploadRidePhoto(ctx context.Context, ride *domain.Ride, photoURL string) (*domain.Ride, error) {
	if photoURL == "" {
		return nil, fmt.Errorf("%w: photo url is required", ErrInvalidInput)
	}

	if ride.PhotoURL != "" {
		return nil, ErrPhotoAlreadyUploaded
	}

	if !ride.IsTerminated() {
		return nil, ErrPhotoUploadNotTerminated
	}

	if time.Since(ride.TerminatedAt) > s.cfg.PhotoUploadWindow {
		return nil, ErrPhotoUploadTimeout
	}

	ride.PhotoURL = photoURL
	if err := s.rideRepo.Update(ctx, ride); err != nil {
		ride.PhotoURL = ""
		return nil, err
	}

	// Only the device's latest ride reflects where the device stands now.
	latest, err := s.rideRepo.GetLatestByDevice(ctx, ride.DeviceCode)
	if err != nil {
		s.logger.WithError(err).WithField("ride_id", ride.ID).Warn("failed to resolve latest ride of device")
		return ride, nil
	}

	if latest.ID == ride.ID {
		if err := s.devices.SetPhoto(ctx, ride.DeviceCode, photoURL); err != nil {
			s.logger.WithError(err).WithField("ride_id", ride.ID).Warn("failed to set device photo")
		}
	}

	return ride, nil
}

// SetLights turns the lights of the ride's device on or off.
func (s *RideService) SetLights(ctx context.Context, ride *domain.Ride, on bool) error {
	if ride.IsTerminated() {
		return ErrAlreadyTerminated
	}
	return s.devices.SetLights(ctx, ride.DeviceCode, on)
}

// SetLock locks or unlocks the ride's device.
func (s *RideService) SetLock(ctx context.Context, ride *domain.Ride, locked bool) error {
	if ride.IsTerminated() {
		return ErrAlreadyTerminated
	}
	return s.devices.SetLock(ctx, ride.DeviceCode, locked)
}

// SetMaxSpeed limits the speed of the ride's device. Nil restores the
// device default.
func (s *RideService) SetMaxSpeed(ctx context.Context, ride *domain.Ride, speed *float64) error {
	if ride.IsTerminated() {
		return ErrAlreadyTerminated
	}
	if speed != nil && (*speed < 0 || *speed > maxSpeedLimit) {
		return fmt.Errorf("%w: max speed must be between 0 and %v", ErrInvalidInput, maxSpeedLimit)
	}
	return s.devices.SetMaxSpeed(ctx, ride.DeviceCode, speed)
}

// GetStatus returns the latest telemetry of the ride's device.
func (s *RideService) GetStatus(ctx context.Context, ride *domain.Ride) (*domain.DeviceStatus, error) {
	if ride.IsTerminated() {
		return nil, ErrAlreadyTerminated
	}
	return s.devices.GetLatestStatus(ctx, ride.DeviceCode)
}

// GetTimeline returns the telemetry recorded during the ride.
func (s *RideService) GetTimeline(ctx context.Context, ride *domain.Ride) ([]*domain.DeviceStatus, error) {
	if ride.IsTerminated() {
		return nil, ErrAlreadyTerminated
	}
	return s.devices.GetStatusTimeline(ctx, ride.DeviceCode, ride.StartedAt, time.Now())
}

// GetCurrentPricing prices an active ride as if it ended now.
func (s *RideService) GetCurrentPricing(ctx context.Context, ride *domain.Ride) (*PricingResult, error) {
	if ride.IsTerminated() {
		return nil, ErrAlreadyTerminated
	}

	status, err := s.devices.GetLatestStatus(ctx, ride.DeviceCode)
	if err != nil {
		return nil, err
	}

	point := geo.Point{Lat: status.Latitude, Lng: status.Longitude}
	if !status.GPSValid {
		if ride.StartedPhoneLocation == nil {
			return nil, fmt.Errorf("%w: no valid location to price the ride", ErrInvalidInput)
		}
		point = geo.Point{Lat: ride.StartedPhoneLocation.Latitude, Lng: ride.StartedPhoneLocation.Longitude}
	}

	return s.pricing.GetPricingByRide(ctx, ride, point.Lat, point.Lng, time.Now())
}

// GetRide retrieves a ride. A non-empty platformID restricts the lookup
// to rides of that platform.
func (s *RideService) GetRide(ctx context.Context, platformID, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, fmt.Errorf("%w: ride id is required", ErrInvalidInput)
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}

	if platformID != "" && ride.PlatformID != platformID {
		return nil, ErrRideNotFound
	}

	return ride, nil
}

// ListRides retrieves rides matching the filter and the total count.
func (s *RideService) ListRides(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, int, error) {
	if filter.Take <= 0 {
		filter.Take = defaultPageSize
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.OrderBy == "" {
		filter.OrderBy = domain.RideOrderByStartedAt
		filter.OrderDesc = true
	}

	return s.rideRepo.List(ctx, filter)
}

// CancelInsurance cancels the insurance policy of the ride.
func (s *RideService) CancelInsurance(ctx context.Context, ride *domain.Ride) error {
	if err := s.insurance.Cancel(ctx, ride); err != nil {
		s.logger.WithError(err).WithField("ride_id", ride.ID).Warn("failed to cancel insurance")
		return err
	}
	return nil
}

// HandleLowBattery terminates the active ride of a device whose battery
// ran low.
func (s *RideService) HandleLowBattery(ctx context.Context, deviceCode string) (*domain.Ride, error) {
	ride, err := s.activeRide(ctx, deviceCode)
	if err != nil {
		return nil, err
	}

	return s.TerminateRide(ctx, ride, TerminateRideRequest{Type: domain.TerminatedTypeLowBattery})
}

// HandleSpeedChange forwards a speed change of a device to the platform of
// its active ride.
func (s *RideService) HandleSpeedChange(ctx context.Context, deviceCode string, speed float64) error {
	ride, err := s.activeRide(ctx, deviceCode)
	if err != nil {
		return err
	}

	return s.notify(ctx, ride, WebhookSpeedChange, map[string]any{
		"rideId":     ride.ID,
		"userId":     ride.UserID,
		"deviceCode": ride.DeviceCode,
		"speed":      speed,
	})
}

func (s *RideService) activeRide(ctx context.Context, deviceCode string) (*domain.Ride, error) {
	deviceCode = strings.ToUpper(strings.TrimSpace(deviceCode))
	if deviceCode == "" {
		return nil, fmt.Errorf("%w: device code is required", ErrInvalidInput)
	}

	ride, err := s.rideRepo.GetActiveByDevice(ctx, deviceCode)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRideNotFound
		}
		return nil, err
	}

	return ride, nil
}

// acquire takes the named lock or fails with ErrRideBusy.
func (s *RideService) acquire(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	release, acquired, err := s.locker.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrRideBusy
	}

	return release, nil
}

func (s *RideService) notify(ctx context.Context, ride *domain.Ride, webhookType WebhookType, data map[string]any) error {
	if s.notifier == nil {
		return nil
	}

	if err := s.notifier.Notify(ctx, ride.PlatformID, Webhook{Type: webhookType, Data: data}); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	return nil
}

func rideWebhookData(ride *domain.Ride) map[string]any {
	data := map[string]any{
		"rideId":         ride.ID,
		"userId":         ride.UserID,
		"deviceCode":     ride.DeviceCode,
		"price":          ride.Price,
		"startedAt":      ride.StartedAt,
		"terminatedAt":   ride.TerminatedAt,
		"terminatedType": ride.TerminatedType,
	}
	if ride.Receipt != nil {
		data["receipt"] = map[string]any{
			"price":     ride.Receipt.Price,
			"discount":  ride.Receipt.Discount,
			"total":     ride.Receipt.Total,
			"isNightly": ride.Receipt.IsNightly,
		}
	}
	return data
}

func newLocation(p geo.Point, at time.Time) *domain.Location {
	return &domain.Location{
		ID:        uuid.New().String(),
		Latitude:  p.Lat,
		Longitude: p.Lng,
		Geohash:   geo.Geohash(p),
		CreatedAt: at,
	}
}

func deviceLockKey(code string) string {
	return "device:" + code
}

func rideLockKey(id string) string {
	return "ride:" + id
}
