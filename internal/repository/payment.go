package repository

import (
	"context"

	"rental/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment of a ride by ID.
	GetByID(ctx context.Context, rideID, id string) (*domain.Payment, error)

	// ListByRide retrieves every payment of a ride, oldest first.
	ListByRide(ctx context.Context, rideID string) ([]*domain.Payment, error)

	// List retrieves payments matching the filter and the total match count.
	List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error)

	// Update stores amount, reason and settlement timestamps.
	Update(ctx context.Context, payment *domain.Payment) error

	// SumOutstanding returns the sum of non-refunded payment amounts of a ride.
	SumOutstanding(ctx context.Context, rideID string) (float64, error)
}
