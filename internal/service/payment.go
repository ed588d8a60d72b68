package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/repository"
)

const defaultPageSize = 10

// PaymentService keeps the payment ledger of rides and the running ride
// price derived from it.
type PaymentService struct {
	paymentRepo repository.PaymentRepository
	rideRepo    repository.RideRepository
	notifier    Notifier
	insurance   InsuranceProvider
	logger      logrus.FieldLogger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	rideRepo repository.RideRepository,
	notifier Notifier,
	insurance InsuranceProvider,
	logger logrus.FieldLogger,
) *PaymentService {
	return &PaymentService{
		paymentRepo: paymentRepo,
		rideRepo:    rideRepo,
		notifier:    notifier,
		insurance:   insurance,
		logger:      logger,
	}
}

// AddPaymentRequest contains the parameters for booking a payment.
type AddPaymentRequest struct {
	Type        domain.PaymentType
	Amount      float64
	Description string
}

// AddPayment books a payment against the ride and recomputes its price.
// A non-positive amount books nothing and returns a nil payment.
//
// If the payment webhook cannot be dispatched, the persisted payment is
// returned together with an error wrapping ErrNotificationFailed.
func (s *PaymentService) AddPayment(ctx context.Context, ride *domain.Ride, req AddPaymentRequest) (*domain.Payment, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown payment type %q", ErrInvalidInput, req.Type)
	}

	if req.Amount <= 0 {
		return nil, nil
	}

	now := time.Now()
	payment := &domain.Payment{
		ID:            uuid.New().String(),
		RideID:        ride.ID,
		PlatformID:    ride.PlatformID,
		FranchiseID:   ride.FranchiseID,
		PaymentType:   req.Type,
		Amount:        req.Amount,
		InitialAmount: req.Amount,
		Description:   req.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.RefreshPrice(ctx, ride); err != nil {
		return nil, err
	}

	if err := s.notify(ctx, ride, WebhookPayment, payment); err != nil {
		return payment, err
	}

	return payment, nil
}

// RefundRequest contains the parameters for refunding a payment.
type RefundRequest struct {
	// Amount to refund. Nil refunds the whole remaining amount.
	Amount *float64
	Reason string
}

// RefundPayment refunds part or all of the remaining amount of a payment
// and recomputes the ride price. Fully refunded payments are left as is.
func (s *PaymentService) RefundPayment(ctx context.Context, ride *domain.Ride, payment *domain.Payment, req RefundRequest) (*domain.Payment, error) {
	if payment.Amount <= 0 {
		return payment, nil
	}

	notifyErr := s.refund(ctx, ride, payment, req)
	if notifyErr != nil && !errors.Is(notifyErr, ErrNotificationFailed) {
		return nil, notifyErr
	}

	if err := s.RefreshPrice(ctx, ride); err != nil {
		return nil, err
	}

	return payment, notifyErr
}

// RefundAllPayment refunds every payment of the ride concurrently and
// recomputes the ride price once all refunds finished.
func (s *PaymentService) RefundAllPayment(ctx context.Context, ride *domain.Ride, reason string) error {
	payments, err := s.paymentRepo.ListByRide(ctx, ride.ID)
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, payment := range payments {
		if payment.Amount <= 0 {
			continue
		}

		wg.Add(1)
		go func(p *domain.Payment) {
			defer wg.Done()

			if err := s.refund(ctx, ride, p, RefundRequest{Reason: reason}); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("refund payment %s: %w", p.ID, err))
				mu.Unlock()
			}
		}(payment)
	}

	wg.Wait()

	if err := s.RefreshPrice(ctx, ride); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// refund applies a refund to one payment without touching the ride price.
func (s *PaymentService) refund(ctx context.Context, ride *domain.Ride, payment *domain.Payment, req RefundRequest) error {
	amount := payment.Amount
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return fmt.Errorf("%w: refund amount must be positive", ErrInvalidInput)
		}
		amount = min(*req.Amount, payment.Amount)
	}

	payment.Amount -= amount
	payment.Reason = req.Reason
	payment.RefundedAt = time.Now()
	payment.ProcessedAt = time.Time{}

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return err
	}

	return s.notify(ctx, ride, WebhookRefund, payment)
}

// SetProcessed marks a payment as settled by the platform.
func (s *PaymentService) SetProcessed(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	payment.ProcessedAt = time.Now()

	if err := s.paymentRepo.Update(ctx, payment); err != nil {
		return nil, err
	}

	return payment, nil
}

// RefreshPrice recomputes the ride price from its non-refunded payments.
// A ride left with nothing to pay has its insurance policy cancelled.
func (s *PaymentService) RefreshPrice(ctx context.Context, ride *domain.Ride) error {
	price, err := s.paymentRepo.SumOutstanding(ctx, ride.ID)
	if err != nil {
		return err
	}

	if err := s.rideRepo.UpdatePrice(ctx, ride.ID, price); err != nil {
		return err
	}
	ride.Price = price

	if price == 0 && ride.InsuranceID != "" && s.insurance != nil {
		if err := s.insurance.Cancel(ctx, ride); err != nil {
			s.logger.WithError(err).WithField("ride_id", ride.ID).Warn("failed to cancel insurance of free ride")
		}
	}

	return nil
}

// GetPayment retrieves a payment of a ride.
func (s *PaymentService) GetPayment(ctx context.Context, rideID, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment id is required", ErrInvalidInput)
	}

	payment, err := s.paymentRepo.GetByID(ctx, rideID, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}

	return payment, nil
}

// ListPayments retrieves payments matching the filter and the total count.
func (s *PaymentService) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error) {
	if filter.Take <= 0 {
		filter.Take = defaultPageSize
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.OrderBy == "" {
		filter.OrderBy = domain.PaymentOrderByCreatedAt
		filter.OrderDesc = true
	}

	return s.paymentRepo.List(ctx, filter)
}

func (s *PaymentService) notify(ctx context.Context, ride *domain.Ride, webhookType WebhookType, payment *domain.Payment) error {
	if s.notifier == nil {
		return nil
	}

	err := s.notifier.Notify(ctx, ride.PlatformID, Webhook{
		Type: webhookType,
		Data: paymentWebhookData(ride, payment),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
	}

	return nil
}

func paymentWebhookData(ride *domain.Ride, payment *domain.Payment) map[string]any {
	data := map[string]any{
		"rideId":        ride.ID,
		"userId":        ride.UserID,
		"paymentId":     payment.ID,
		"paymentType":   payment.PaymentType,
		"amount":        payment.Amount,
		"initialAmount": payment.InitialAmount,
		"description":   payment.Description,
		"createdAt":     payment.CreatedAt,
	}
	if payment.IsRefunded() {
		data["reason"] = payment.Reason
		data["refundedAt"] = payment.RefundedAt
	}
	return data
}
