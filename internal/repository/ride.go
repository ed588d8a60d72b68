package repository

import (
	"context"

	"rental/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride together with its start locations.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID, including locations and receipt.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetLatestByDevice retrieves the most recently created ride of a device.
	GetLatestByDevice(ctx context.Context, deviceCode string) (*domain.Ride, error)

	// GetActiveByDevice retrieves the non-terminated ride of a device.
	GetActiveByDevice(ctx context.Context, deviceCode string) (*domain.Ride, error)

	// List retrieves rides matching the filter and the total match count.
	List(ctx context.Context, filter domain.RideFilter) ([]*domain.Ride, int, error)

	// Update updates the mutable, non-terminal fields of a ride.
	Update(ctx context.Context, ride *domain.Ride) error

	// UpdatePrice stores the recomputed running price.
	UpdatePrice(ctx context.Context, id string, price float64) error

	// Terminate stores the end location, the receipt and the terminate
	// fields atomically. Returns ErrConflict if the ride was already
	// terminated.
	Terminate(ctx context.Context, ride *domain.Ride) error
}
