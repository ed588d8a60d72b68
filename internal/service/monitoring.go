package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/repository"
)

// Message templates sent to riders per monitoring status.
const (
	TemplateDangerParking    = "monitoring_danger_parking"
	TemplateInCollectionArea = "monitoring_in_collection_area"
	TemplateWrongPicture     = "monitoring_wrong_picture"
	TemplateTowed            = "monitoring_towed"
)

// MonitoringService drives the post-termination review of rides.
type MonitoringService struct {
	logRepo  repository.MonitoringLogRepository
	rideRepo repository.RideRepository
	payments *PaymentService
	messages MessageSender
	logger   logrus.FieldLogger
}

// NewMonitoringService creates a new MonitoringService.
func NewMonitoringService(
	logRepo repository.MonitoringLogRepository,
	rideRepo repository.RideRepository,
	payments *PaymentService,
	messages MessageSender,
	logger logrus.FieldLogger,
) *MonitoringService {
	return &MonitoringService{
		logRepo:  logRepo,
		rideRepo: rideRepo,
		payments: payments,
		messages: messages,
		logger:   logger,
	}
}

// AddLog appends a monitoring log entry to the ride.
func (s *MonitoringService) AddLog(ctx context.Context, ride *domain.Ride, logType domain.MonitoringLogType, message string) (*domain.MonitoringLog, error) {
	entry := &domain.MonitoringLog{
		ID:        uuid.New().String(),
		RideID:    ride.ID,
		LogType:   logType,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if err := s.logRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// ListLogs retrieves the monitoring log of the ride, newest first.
func (s *MonitoringService) ListLogs(ctx context.Context, ride *domain.Ride) ([]*domain.MonitoringLog, error) {
	return s.logRepo.ListByRide(ctx, ride.ID)
}

// SetMonitoringStatusRequest contains the parameters for changing the
// monitoring status of a ride.
type SetMonitoringStatusRequest struct {
	Status      domain.MonitoringStatus
	SendMessage bool

	// Price is booked as a surcharge when the status is final.
	Price *float64
}

// SetMonitoringStatus changes the monitoring status of the ride, optionally
// messages the rider and books a recovery surcharge.
func (s *MonitoringService) SetMonitoringStatus(ctx context.Context, ride *domain.Ride, req SetMonitoringStatusRequest) (*domain.Ride, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown monitoring status %q", ErrInvalidInput, req.Status)
	}

	if req.Price != nil && *req.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}

	previous := ride.MonitoringStatus
	ride.MonitoringStatus = req.Status
	if err := s.rideRepo.Update(ctx, ride); err != nil {
		ride.MonitoringStatus = previous
		return nil, err
	}

	logger := s.logger.WithField("ride_id", ride.ID)

	s.appendLog(ctx, logger, ride, domain.MonitoringLogTypeChanged,
		fmt.Sprintf("monitoring status changed from %s to %s", previous, req.Status))

	if req.Status.IsFinal() {
		s.appendLog(ctx, logger, ride, domain.MonitoringLogTypeInfo,
			fmt.Sprintf("device recovered (%s)", req.Status))
	}

	if req.SendMessage {
		if err := s.sendStatusMessage(ctx, logger, ride, req); err != nil {
			return nil, err
		}
	}

	if req.Status.IsFinal() && req.Price != nil && *req.Price > 0 {
		payment, err := s.payments.AddPayment(ctx, ride, AddPaymentRequest{
			Type:        domain.PaymentTypeSurcharge,
			Amount:      *req.Price,
			Description: string(req.Status),
		})
		if err != nil {
			if !errors.Is(err, ErrNotificationFailed) {
				return nil, err
			}
			logger.WithError(err).Warn("surcharge booked without notification")
		}

		s.appendLog(ctx, logger, ride, domain.MonitoringLogTypeAddPayment,
			fmt.Sprintf("surcharge %s booked (%s)", formatAmount(payment.Amount), payment.ID))
	}

	return ride, nil
}

func (s *MonitoringService) sendStatusMessage(ctx context.Context, logger logrus.FieldLogger, ride *domain.Ride, req SetMonitoringStatusRequest) error {
	template := messageTemplate(req.Status)
	if template == "" || s.messages == nil {
		return nil
	}

	fields := map[string]string{
		"realName":   ride.RealName,
		"deviceCode": ride.DeviceCode,
	}
	if req.Price != nil {
		fields["price"] = formatAmount(*req.Price)
	}

	if err := s.messages.Send(ctx, ride.Phone, template, fields); err != nil {
		return err
	}

	s.appendLog(ctx, logger, ride, domain.MonitoringLogTypeSendMessage,
		fmt.Sprintf("message %s sent to %s", template, ride.Phone))

	return nil
}

// appendLog records an entry; a failed write does not undo the change
// it describes.
func (s *MonitoringService) appendLog(ctx context.Context, logger logrus.FieldLogger, ride *domain.Ride, logType domain.MonitoringLogType, message string) {
	if _, err := s.AddLog(ctx, ride, logType, message); err != nil {
		logger.WithError(err).WithField("log_type", logType).Warn("failed to write monitoring log")
	}
}

func messageTemplate(status domain.MonitoringStatus) string {
	switch status {
	case domain.MonitoringStatusWrongParking, domain.MonitoringStatusDangerParking:
		return TemplateDangerParking
	case domain.MonitoringStatusInCollectionArea:
		return TemplateInCollectionArea
	case domain.MonitoringStatusWrongPicture, domain.MonitoringStatusNoPicture:
		return TemplateWrongPicture
	case domain.MonitoringStatusCollectedKickboard, domain.MonitoringStatusTowedKickboard:
		return TemplateTowed
	default:
		return ""
	}
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
