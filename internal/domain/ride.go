package domain

import "time"

// TerminatedType represents why a ride was terminated.
type TerminatedType string

const (
	TerminatedTypeUserRequested  TerminatedType = "USER_REQUESTED"
	TerminatedTypeAdminRequested TerminatedType = "ADMIN_REQUESTED"
	TerminatedTypeLowBattery     TerminatedType = "LOW_BATTERY"
	TerminatedTypeUnused         TerminatedType = "UNUSED"
)

// Valid reports whether t is a known terminate reason.
func (t TerminatedType) Valid() bool {
	switch t {
	case TerminatedTypeUserRequested, TerminatedTypeAdminRequested,
		TerminatedTypeLowBattery, TerminatedTypeUnused:
		return true
	}
	return false
}

// Ride represents one rental session on a device.
type Ride struct {
	ID          string
	DeviceCode  string
	PlatformID  string
	FranchiseID string
	RegionID    string

	UserID      string
	RealName    string
	Phone       string
	Birthday    time.Time
	InsuranceID string
	PhotoURL    string

	DiscountGroupID string
	DiscountID      string

	StartedPhoneLocation     *Location
	StartedDeviceLocation    *Location
	TerminatedPhoneLocation  *Location
	TerminatedDeviceLocation *Location
	TerminatedType           TerminatedType
	MonitoringStatus         MonitoringStatus
	Receipt                  *Receipt

	// Price is the sum of non-refunded payment amounts.
	Price float64

	StartedAt    time.Time
	TerminatedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTerminated reports whether the ride has reached its terminal state.
func (r *Ride) IsTerminated() bool {
	return !r.TerminatedAt.IsZero()
}

// HasDiscount reports whether a discount is attached to the ride.
func (r *Ride) HasDiscount() bool {
	return r.DiscountGroupID != "" && r.DiscountID != ""
}

// RideOrderField is a sortable ride column.
type RideOrderField string

const (
	RideOrderByPrice        RideOrderField = "price"
	RideOrderByStartedAt    RideOrderField = "startedAt"
	RideOrderByTerminatedAt RideOrderField = "terminatedAt"
	RideOrderByCreatedAt    RideOrderField = "createdAt"
	RideOrderByUpdatedAt    RideOrderField = "updatedAt"
)

// RideFilter narrows a ride listing.
type RideFilter struct {
	Take   int
	Skip   int
	Search string

	PlatformIDs      []string
	FranchiseIDs     []string
	RegionIDs        []string
	DiscountGroupIDs []string
	TerminatedTypes  []TerminatedType
	DeviceCodes      []string
	MonitoringStatus []MonitoringStatus
	StartedAtFrom    time.Time
	StartedAtTo      time.Time
	TerminatedBefore time.Time
	ShowTerminated   bool
	OnlyTerminated   bool
	OnlyPhoto        bool
	OnlyMissingPhoto bool

	OrderBy   RideOrderField
	OrderDesc bool
}
