package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/repository"
)

const (
	photoCheckPageSize = 10

	// DefaultPhotoGracePeriod is how long after termination a ride may
	// still be missing its return photo before it is flagged.
	DefaultPhotoGracePeriod = 5 * time.Minute
)

// PhotoChecker periodically flags terminated rides that never received a
// return photo.
type PhotoChecker struct {
	rideRepo   repository.RideRepository
	monitoring *MonitoringService
	interval   time.Duration
	grace      time.Duration
	logger     logrus.FieldLogger
}

// NewPhotoChecker creates a new PhotoChecker.
func NewPhotoChecker(
	rideRepo repository.RideRepository,
	monitoring *MonitoringService,
	interval time.Duration,
	grace time.Duration,
	logger logrus.FieldLogger,
) *PhotoChecker {
	if grace <= 0 {
		grace = DefaultPhotoGracePeriod
	}

	return &PhotoChecker{
		rideRepo:   rideRepo,
		monitoring: monitoring,
		interval:   interval,
		grace:      grace,
		logger:     logger,
	}
}

// Run checks on every tick until ctx is cancelled.
func (c *PhotoChecker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.WithField("interval", c.interval.String()).Info("photo checker started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("photo checker stopped")
			return
		case <-ticker.C:
			flagged, err := c.CheckOnce(ctx)
			if err != nil {
				c.logger.WithError(err).Error("photo check failed")
				continue
			}
			if flagged > 0 {
				c.logger.WithField("flagged", flagged).Info("rides flagged without photo")
			}
		}
	}
}

// CheckOnce flags every eligible ride as NO_PICTURE and returns how many
// were flagged.
func (c *PhotoChecker) CheckOnce(ctx context.Context) (int, error) {
	filter := domain.RideFilter{
		Take:             photoCheckPageSize,
		OnlyTerminated:   true,
		OnlyMissingPhoto: true,
		MonitoringStatus: []domain.MonitoringStatus{domain.MonitoringStatusBeforeConfirm},
		TerminatedBefore: time.Now().Add(-c.grace),
		OrderBy:          domain.RideOrderByTerminatedAt,
	}

	flagged := 0
	for {
		rides, _, err := c.rideRepo.List(ctx, filter)
		if err != nil {
			return flagged, err
		}

		// Flagged rides leave the result set; only failed ones are skipped.
		failed := 0
		for _, ride := range rides {
			_, err := c.monitoring.SetMonitoringStatus(ctx, ride, SetMonitoringStatusRequest{
				Status: domain.MonitoringStatusNoPicture,
			})
			if err != nil {
				failed++
				c.logger.WithError(err).WithField("ride_id", ride.ID).Warn("failed to flag ride without photo")
				continue
			}
			flagged++
		}

		if len(rides) < photoCheckPageSize {
			return flagged, nil
		}
		filter.Skip += failed

		if err := ctx.Err(); err != nil {
			return flagged, err
		}
	}
}
