package service_test

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"rental/internal/domain"
	"rental/internal/geo"
	"rental/internal/repository"
	"rental/internal/service"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount      int32
	UpdateCallCount      int32
	UpdatePriceCallCount int32
	TerminateCallCount   int32

	// Error injection
	CreateError    error
	UpdateError    error
	TerminateError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
}

// GetRide returns a ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil
	}
	copy := *ride
	return &copy
}

// CountRides returns the number of stored rides.
func (m *MockRideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.AddRide(ride)
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	ride := m.GetRide(id)
	if ride == nil {
		return nil, repository.ErrNotFound
	}
	return ride, nil
}

func (m *MockRideRepository) GetLatestByDevice(ctx context.Context, deviceCode string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Ride
	for _, r := range m.rides {
		if r.DeviceCode == deviceCode && (latest == nil || r.CreatedAt.After(latest.CreatedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	copy := *latest
	return &copy, nil
}

func (m *MockRideRepository) GetActiveByDevice(ctx context.Context, deviceCode string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if r.DeviceCode == deviceCode && !r.IsTerminated() {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List supports the filter fields used by the photo checker.
func (m *MockRideRepository) List(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*domain.Ride
	for _, r := range m.rides {
		if filter.OnlyTerminated && !r.IsTerminated() {
			continue
		}
		if filter.OnlyMissingPhoto && r.PhotoURL != "" {
			continue
		}
		if !filter.TerminatedBefore.IsZero() && !r.TerminatedAt.Before(filter.TerminatedBefore) {
			continue
		}
		if len(filter.MonitoringStatus) > 0 && !containsStatus(filter.MonitoringStatus, r.MonitoringStatus) {
			continue
		}
		if len(filter.PlatformIDs) > 0 && !containsString(filter.PlatformIDs, r.PlatformID) {
			continue
		}
		copy := *r
		matched = append(matched, &copy)
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	if filter.Skip >= total {
		return nil, total, nil
	}
	matched = matched[filter.Skip:]
	if filter.Take > 0 && len(matched) > filter.Take {
		matched = matched[:filter.Take]
	}
	return matched, total, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.DiscountGroupID = ride.DiscountGroupID
	stored.DiscountID = ride.DiscountID
	stored.PhotoURL = ride.PhotoURL
	stored.MonitoringStatus = ride.MonitoringStatus
	stored.InsuranceID = ride.InsuranceID
	return nil
}

func (m *MockRideRepository) UpdatePrice(ctx context.Context, id string, price float64) error {
	atomic.AddInt32(&m.UpdatePriceCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[id]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Price = price
	return nil
}

func (m *MockRideRepository) Terminate(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.TerminateCallCount, 1)
	if m.TerminateError != nil {
		return m.TerminateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.IsTerminated() {
		return repository.ErrConflict
	}
	stored.TerminatedAt = ride.TerminatedAt
	stored.TerminatedType = ride.TerminatedType
	stored.TerminatedPhoneLocation = ride.TerminatedPhoneLocation
	stored.TerminatedDeviceLocation = ride.TerminatedDeviceLocation
	stored.Receipt = ride.Receipt
	return nil
}

func containsStatus(list []domain.MonitoringStatus, s domain.MonitoringStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments []*domain.Payment

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *payment
	m.payments = append(m.payments, &copy)
}

// PaymentsOf returns the payments of a ride for test assertions.
func (m *MockPaymentRepository) PaymentsOf(rideID string) []*domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Payment
	for _, p := range m.payments {
		if p.RideID == rideID {
			copy := *p
			result = append(result, &copy)
		}
	}
	return result
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.AddPayment(payment)
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, rideID, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.RideID == rideID && p.ID == id {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Payment, error) {
	return m.PaymentsOf(rideID), nil
}

func (m *MockPaymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error) {
	var matched []*domain.Payment
	m.mu.RLock()
	for _, p := range m.payments {
		if filter.RideID != "" && p.RideID != filter.RideID {
			continue
		}
		if filter.HideRefunded && p.IsRefunded() {
			continue
		}
		copy := *p
		matched = append(matched, &copy)
	}
	m.mu.RUnlock()

	total := len(matched)
	if filter.Take > 0 && len(matched) > filter.Take {
		matched = matched[:filter.Take]
	}
	return matched, total, nil
}

func (m *MockPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == payment.ID {
			p.Amount = payment.Amount
			p.Reason = payment.Reason
			p.RefundedAt = payment.RefundedAt
			p.ProcessedAt = payment.ProcessedAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockPaymentRepository) SumOutstanding(ctx context.Context, rideID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum float64
	for _, p := range m.payments {
		if p.RideID == rideID && !p.IsRefunded() {
			sum += p.Amount
		}
	}
	return sum, nil
}

// ──────────────────────────────────────────────
// MOCK MONITORING LOG REPOSITORY
// ──────────────────────────────────────────────

// MockMonitoringLogRepository is a mock implementation of MonitoringLogRepository.
type MockMonitoringLogRepository struct {
	mu   sync.RWMutex
	logs []*domain.MonitoringLog

	CreateError error
}

// NewMockMonitoringLogRepository creates a new mock monitoring log repository.
func NewMockMonitoringLogRepository() *MockMonitoringLogRepository {
	return &MockMonitoringLogRepository{}
}

func (m *MockMonitoringLogRepository) Create(ctx context.Context, log *domain.MonitoringLog) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockMonitoringLogRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.MonitoringLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.MonitoringLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		if m.logs[i].RideID == rideID {
			result = append(result, m.logs[i])
		}
	}
	return result, nil
}

// LogTypes returns the log types of a ride in insertion order.
func (m *MockMonitoringLogRepository) LogTypes(rideID string) []domain.MonitoringLogType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var types []domain.MonitoringLogType
	for _, l := range m.logs {
		if l.RideID == rideID {
			types = append(types, l.LogType)
		}
	}
	return types
}

// ──────────────────────────────────────────────
// MOCK DEVICE CONTROLLER
// ──────────────────────────────────────────────

// MockDeviceController is a mock implementation of DeviceController.
type MockDeviceController struct {
	mu       sync.RWMutex
	devices  map[string]*domain.Device
	statuses map[string]*domain.DeviceStatus
	photos   map[string]string
	lights   map[string]bool

	// Counters for verification
	StartCallCount       int32
	StopCallCount        int32
	SetLightsCallCount   int32
	SetPhotoCallCount    int32
	SetMaxSpeedCallCount int32

	// Error injection
	GetStatusError error
	StartError     error
	StopError      error
	SetPhotoError  error
}

// NewMockDeviceController creates a new mock device controller.
func NewMockDeviceController() *MockDeviceController {
	return &MockDeviceController{
		devices:  make(map[string]*domain.Device),
		statuses: make(map[string]*domain.DeviceStatus),
		photos:   make(map[string]string),
		lights:   make(map[string]bool),
	}
}

// AddDevice registers a device with its latest telemetry.
func (m *MockDeviceController) AddDevice(device *domain.Device, status *domain.DeviceStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices[device.Code] = device
	m.statuses[device.Code] = status
}

// Photo returns the stored photo of a device.
func (m *MockDeviceController) Photo(code string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.photos[code]
}

func (m *MockDeviceController) GetDevice(ctx context.Context, code string) (*domain.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	device, ok := m.devices[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *device
	return &copy, nil
}

func (m *MockDeviceController) GetLatestStatus(ctx context.Context, code string) (*domain.DeviceStatus, error) {
	if m.GetStatusError != nil {
		return nil, m.GetStatusError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *status
	return &copy, nil
}

func (m *MockDeviceController) GetStatusTimeline(ctx context.Context, code string, from, to time.Time) ([]*domain.DeviceStatus, error) {
	status, err := m.GetLatestStatus(ctx, code)
	if err != nil {
		return nil, err
	}
	return []*domain.DeviceStatus{status}, nil
}

func (m *MockDeviceController) Start(ctx context.Context, code string) error {
	atomic.AddInt32(&m.StartCallCount, 1)
	return m.StartError
}

func (m *MockDeviceController) Stop(ctx context.Context, code string) error {
	atomic.AddInt32(&m.StopCallCount, 1)
	return m.StopError
}

func (m *MockDeviceController) SetLights(ctx context.Context, code string, on bool) error {
	atomic.AddInt32(&m.SetLightsCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lights[code] = on
	return nil
}

func (m *MockDeviceController) SetLock(ctx context.Context, code string, locked bool) error {
	return nil
}

func (m *MockDeviceController) SetMaxSpeed(ctx context.Context, code string, speed *float64) error {
	atomic.AddInt32(&m.SetMaxSpeedCallCount, 1)
	return nil
}

func (m *MockDeviceController) SetPhoto(ctx context.Context, code string, url string) error {
	atomic.AddInt32(&m.SetPhotoCallCount, 1)
	if m.SetPhotoError != nil {
		return m.SetPhotoError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[code] = url
	return nil
}

// ──────────────────────────────────────────────
// MOCK INSURANCE PROVIDER
// ──────────────────────────────────────────────

// MockInsuranceProvider is a mock implementation of InsuranceProvider.
type MockInsuranceProvider struct {
	StartCallCount  int32
	EndCallCount    int32
	CancelCallCount int32

	StartError  error
	EndError    error
	CancelError error

	mu      sync.Mutex
	EndedAt time.Time
}

func (m *MockInsuranceProvider) Start(ctx context.Context, ride *domain.Ride) (string, error) {
	atomic.AddInt32(&m.StartCallCount, 1)
	if m.StartError != nil {
		return "", m.StartError
	}
	return "insurance-" + ride.ID, nil
}

func (m *MockInsuranceProvider) End(ctx context.Context, ride *domain.Ride, endedAt time.Time) error {
	atomic.AddInt32(&m.EndCallCount, 1)
	m.mu.Lock()
	m.EndedAt = endedAt
	m.mu.Unlock()
	return m.EndError
}

func (m *MockInsuranceProvider) Cancel(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CancelCallCount, 1)
	return m.CancelError
}

// ──────────────────────────────────────────────
// MOCK DISCOUNT PROVIDER
// ──────────────────────────────────────────────

// MockDiscountProvider is a mock implementation of DiscountProvider.
type MockDiscountProvider struct {
	mu     sync.RWMutex
	groups map[string]*domain.DiscountGroup
	locked map[string]bool

	LockCallCount   int32
	UnlockCallCount int32
	UseCallCount    int32

	LockError error
}

// NewMockDiscountProvider creates a new mock discount provider.
func NewMockDiscountProvider() *MockDiscountProvider {
	return &MockDiscountProvider{
		groups: make(map[string]*domain.DiscountGroup),
		locked: make(map[string]bool),
	}
}

// AddGroup registers a discount group.
func (m *MockDiscountProvider) AddGroup(group *domain.DiscountGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[group.ID] = group
}

// IsLocked reports whether a discount is currently locked.
func (m *MockDiscountProvider) IsLocked(discountID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked[discountID]
}

func (m *MockDiscountProvider) GetDiscountGroup(ctx context.Context, groupID string) (*domain.DiscountGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	group, ok := m.groups[groupID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *group
	return &copy, nil
}

func (m *MockDiscountProvider) GetDiscount(ctx context.Context, groupID, discountID string) (*domain.Discount, error) {
	if _, err := m.GetDiscountGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return &domain.Discount{ID: discountID, DiscountGroupID: groupID}, nil
}

func (m *MockDiscountProvider) Lock(ctx context.Context, groupID, discountID string) error {
	atomic.AddInt32(&m.LockCallCount, 1)
	if m.LockError != nil {
		return m.LockError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked[discountID] = true
	return nil
}

func (m *MockDiscountProvider) Unlock(ctx context.Context, groupID, discountID string) error {
	atomic.AddInt32(&m.UnlockCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locked, discountID)
	return nil
}

func (m *MockDiscountProvider) Use(ctx context.Context, groupID, discountID string) error {
	atomic.AddInt32(&m.UseCallCount, 1)
	return nil
}

// ──────────────────────────────────────────────
// MOCK TARIFF PROVIDER
// ──────────────────────────────────────────────

// MockTariffProvider returns one tariff for every coordinate.
type MockTariffProvider struct {
	Tariff  domain.Tariff
	Profile domain.LocationProfile

	GetTariffError error
}

func (m *MockTariffProvider) GetTariff(ctx context.Context, p geo.Point) (*domain.Tariff, error) {
	if m.GetTariffError != nil {
		return nil, m.GetTariffError
	}
	copy := m.Tariff
	return &copy, nil
}

func (m *MockTariffProvider) GetProfile(ctx context.Context, p geo.Point) (*domain.LocationProfile, error) {
	copy := m.Profile
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK EQUIPMENT TRACKER
// ──────────────────────────────────────────────

// MockEquipmentTracker is a mock implementation of EquipmentTracker.
type MockEquipmentTracker struct {
	Unreturned bool
}

func (m *MockEquipmentTracker) HasUnreturned(ctx context.Context, ride *domain.Ride) (bool, error) {
	return m.Unreturned, nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier records dispatched webhooks.
type MockNotifier struct {
	mu       sync.Mutex
	webhooks []service.Webhook

	NotifyError error
}

func (m *MockNotifier) Notify(ctx context.Context, platformID string, webhook service.Webhook) error {
	if m.NotifyError != nil {
		return m.NotifyError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhooks = append(m.webhooks, webhook)
	return nil
}

// Count returns how many webhooks of the type were dispatched.
func (m *MockNotifier) Count(webhookType service.WebhookType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, w := range m.webhooks {
		if w.Type == webhookType {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK MESSAGE SENDER
// ──────────────────────────────────────────────

// MockMessageSender records sent templates.
type MockMessageSender struct {
	mu        sync.Mutex
	Templates []string
}

func (m *MockMessageSender) Send(ctx context.Context, phone, template string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Templates = append(m.Templates, template)
	return nil
}

// ──────────────────────────────────────────────
// MOCK LOCKER
// ──────────────────────────────────────────────

// MockLocker is an in-process Locker.
type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool
	ttls []time.Duration

	AcquireCallCount int32
}

// TTLs returns the ttl of every Acquire call.
func (m *MockLocker) TTLs() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.ttls...)
}

// NewMockLocker creates a new mock locker.
func NewMockLocker() *MockLocker {
	return &MockLocker{held: make(map[string]bool)}
}

// Hold marks key as held by someone else.
func (m *MockLocker) Hold(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[key] = true
}

func (m *MockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttls = append(m.ttls, ttl)
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.held, key)
	}, true, nil
}
