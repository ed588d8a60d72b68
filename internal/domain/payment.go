package domain

import "time"

// PaymentType represents the kind of charge a payment records.
type PaymentType string

const (
	PaymentTypeService   PaymentType = "SERVICE"
	PaymentTypeSurcharge PaymentType = "SURCHARGE"
)

// Valid reports whether t is a known payment type.
func (t PaymentType) Valid() bool {
	return t == PaymentTypeService || t == PaymentTypeSurcharge
}

// Payment is one charge or refund line against a ride.
type Payment struct {
	ID          string
	RideID      string
	PlatformID  string
	FranchiseID string
	PaymentType PaymentType

	// Amount is the outstanding amount; partial refunds decrease it.
	Amount        float64
	InitialAmount float64

	Description string
	Reason      string
	RefundedAt  time.Time
	ProcessedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRefunded reports whether any refund has been applied.
func (p *Payment) IsRefunded() bool {
	return !p.RefundedAt.IsZero()
}

// PaymentOrderField is a sortable payment column.
type PaymentOrderField string

const (
	PaymentOrderByAmount     PaymentOrderField = "amount"
	PaymentOrderByRefundedAt PaymentOrderField = "refundedAt"
	PaymentOrderByCreatedAt  PaymentOrderField = "createdAt"
	PaymentOrderByUpdatedAt  PaymentOrderField = "updatedAt"
)

// PaymentFilter narrows a payment listing.
type PaymentFilter struct {
	Take   int
	Skip   int
	Search string

	RideID       string
	PlatformIDs  []string
	FranchiseIDs []string
	PaymentTypes []PaymentType
	OnlyRefunded bool
	HideRefunded bool
	CreatedFrom  time.Time
	CreatedTo    time.Time

	OrderBy   PaymentOrderField
	OrderDesc bool
}
