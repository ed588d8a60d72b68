package repository

import (
	"context"

	"rental/internal/domain"
)

// MonitoringLogRepository defines the persistence operations for monitoring logs.
type MonitoringLogRepository interface {
	// Create appends a log entry.
	Create(ctx context.Context, log *domain.MonitoringLog) error

	// ListByRide retrieves the log entries of a ride, newest first.
	ListByRide(ctx context.Context, rideID string) ([]*domain.MonitoringLog, error)
}
