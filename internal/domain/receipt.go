package domain

import "time"

// ReceiptUnit is one fare component of a receipt.
// Total is always Price - Discount.
type ReceiptUnit struct {
	Price    float64
	Discount float64
	Total    float64
}

// Receipt is the fare breakdown computed once, at termination.
type Receipt struct {
	ID        string
	RideID    string
	Standard  ReceiptUnit
	PerMinute ReceiptUnit
	Surcharge ReceiptUnit
	IsNightly bool
	Price     float64
	Discount  float64
	Total     float64
	CreatedAt time.Time
}
