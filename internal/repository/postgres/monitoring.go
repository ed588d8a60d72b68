package postgres

import (
	"context"
	"database/sql"

	"rental/internal/domain"
	"rental/internal/repository"
)

// MonitoringLogRepository is a PostgreSQL implementation of
// repository.MonitoringLogRepository.
type MonitoringLogRepository struct {
	q Querier
}

// NewMonitoringLogRepository creates a new PostgreSQL monitoring log repository.
func NewMonitoringLogRepository(db *sql.DB) *MonitoringLogRepository {
	return &MonitoringLogRepository{q: db}
}

// Create appends a log entry.
func (r *MonitoringLogRepository) Create(ctx context.Context, log *domain.MonitoringLog) error {
	query := `
		INSERT INTO monitoring_logs (id, ride_id, log_type, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.q.ExecContext(ctx, query,
		log.ID,
		log.RideID,
		log.LogType,
		log.Message,
		log.CreatedAt,
	)

	return err
}

// ListByRide retrieves the log entries of a ride, newest first.
func (r *MonitoringLogRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.MonitoringLog, error) {
	query := `
		SELECT id, ride_id, log_type, message, created_at
		FROM monitoring_logs WHERE ride_id = $1 ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.MonitoringLog
	for rows.Next() {
		var log domain.MonitoringLog
		if err := rows.Scan(&log.ID, &log.RideID, &log.LogType, &log.Message, &log.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}

	return logs, rows.Err()
}

// Ensure MonitoringLogRepository implements repository.MonitoringLogRepository.
var _ repository.MonitoringLogRepository = (*MonitoringLogRepository)(nil)
