package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/domain"
	"rental/internal/service"
)

// PaymentHandler handles HTTP requests for the payment ledger of rides.
type PaymentHandler struct {
	paymentService PaymentService
	rides          rideGetter
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService PaymentService, rides RideService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		rides:          rides,
	}
}

// AddPaymentRequest is the HTTP request body for booking a payment.
type AddPaymentRequest struct {
	PaymentType string  `json:"paymentType" binding:"required"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// RefundPaymentQuery is the query of refund requests. A missing amount
// refunds the whole remaining amount.
type RefundPaymentQuery struct {
	Amount *float64 `form:"amount"`
	Reason string   `form:"reason"`
}

// ListPaymentsQuery is the query of payment listings.
type ListPaymentsQuery struct {
	Take         int       `form:"take"`
	Skip         int       `form:"skip"`
	Search       string    `form:"search"`
	PlatformIDs  []string  `form:"platformIds"`
	FranchiseIDs []string  `form:"franchiseIds"`
	PaymentTypes []string  `form:"paymentTypes"`
	OnlyRefunded bool      `form:"onlyRefunded"`
	HideRefunded bool      `form:"hideRefunded"`
	CreatedFrom  time.Time `form:"createdFrom"`
	CreatedTo    time.Time `form:"createdTo"`
	OrderBy      string    `form:"orderBy"`
	OrderDesc    bool      `form:"orderDesc"`
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID            string  `json:"paymentId"`
	RideID        string  `json:"rideId"`
	PlatformID    string  `json:"platformId"`
	FranchiseID   string  `json:"franchiseId"`
	PaymentType   string  `json:"paymentType"`
	Amount        float64 `json:"amount"`
	InitialAmount float64 `json:"initialAmount"`
	Description   string  `json:"description,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	RefundedAt    string  `json:"refundedAt,omitempty"`
	ProcessedAt   string  `json:"processedAt,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// ListPaymentsResponse is the HTTP response for payment listings.
type ListPaymentsResponse struct {
	Payments []PaymentResponse `json:"payments"`
	Total    int               `json:"total"`
}

// ListRidePayments handles GET /rides/:rideId/payments
func (h *PaymentHandler) ListRidePayments(c *gin.Context) {
	var query ListPaymentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rides)
	if !ok {
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		respondError(c, err)
		return
	}
	filter.RideID = ride.ID
	filter.PlatformIDs = nil

	h.respondPayments(c, filter)
}

// ListPayments handles GET /internal/payments
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	var query ListPaymentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		respondError(c, err)
		return
	}

	if scope := platformScope(c); scope != "" {
		filter.PlatformIDs = []string{scope}
	}

	h.respondPayments(c, filter)
}

func (h *PaymentHandler) respondPayments(c *gin.Context, filter domain.PaymentFilter) {
	payments, total, err := h.paymentService.ListPayments(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := ListPaymentsResponse{Payments: make([]PaymentResponse, 0, len(payments)), Total: total}
	for _, payment := range payments {
		response.Payments = append(response.Payments, toPaymentResponse(payment))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetPayment handles GET /rides/:rideId/payments/:paymentId
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	_, payment, ok := h.loadPayment(c)
	if !ok {
		return
	}
	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// SetProcessed handles GET /rides/:rideId/payments/:paymentId/process
func (h *PaymentHandler) SetProcessed(c *gin.Context) {
	_, payment, ok := h.loadPayment(c)
	if !ok {
		return
	}

	processed, err := h.paymentService.SetProcessed(c.Request.Context(), payment)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(processed))
}

// AddPayment handles POST /rides/:rideId/payments
//
// Responds 204 when the amount is not positive and nothing was booked.
func (h *PaymentHandler) AddPayment(c *gin.Context) {
	var req AddPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rides)
	if !ok {
		return
	}

	payment, err := h.paymentService.AddPayment(c.Request.Context(), ride, service.AddPaymentRequest{
		Type:        domain.PaymentType(strings.ToUpper(req.PaymentType)),
		Amount:      req.Amount,
		Description: req.Description,
	})
	if !bookedDespite(c, payment, err) {
		return
	}

	if payment == nil {
		c.Status(http.StatusNoContent)
		return
	}

	respondJSON(c, http.StatusCreated, toPaymentResponse(payment))
}

// RefundPayment handles DELETE /rides/:rideId/payments/:paymentId
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	var query RefundPaymentQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, payment, ok := h.loadPayment(c)
	if !ok {
		return
	}

	refunded, err := h.paymentService.RefundPayment(c.Request.Context(), ride, payment, service.RefundRequest{
		Amount: query.Amount,
		Reason: query.Reason,
	})
	if !bookedDespite(c, refunded, err) {
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(refunded))
}

// RefundAllPayment handles DELETE /rides/:rideId/payments
// It responds with the payments of the ride after the refund.
func (h *PaymentHandler) RefundAllPayment(c *gin.Context) {
	ride, ok := loadRide(c, h.rides)
	if !ok {
		return
	}

	err := h.paymentService.RefundAllPayment(c.Request.Context(), ride, c.Query("reason"))
	if err != nil && !errors.Is(err, service.ErrNotificationFailed) {
		respondError(c, err)
		return
	}
	if err != nil {
		_ = c.Error(err)
	}

	h.respondPayments(c, domain.PaymentFilter{RideID: ride.ID, Take: maxRidePayments})
}

// loadPayment resolves the :rideId and :paymentId path parameters.
func (h *PaymentHandler) loadPayment(c *gin.Context) (*domain.Ride, *domain.Payment, bool) {
	ride, ok := loadRide(c, h.rides)
	if !ok {
		return nil, nil, false
	}

	payment, err := h.paymentService.GetPayment(c.Request.Context(), ride.ID, c.Param("paymentId"))
	if err != nil {
		respondError(c, err)
		return nil, nil, false
	}

	return ride, payment, true
}

// maxRidePayments bounds the listing returned after a full refund.
const maxRidePayments = 100

// bookedDespite reports whether the ledger change was persisted. A failed
// webhook does not undo the booking; it is reported to New Relic and the
// request still succeeds so that clients do not book twice.
func bookedDespite(c *gin.Context, payment *domain.Payment, err error) bool {
	if err == nil {
		return true
	}
	if payment != nil && errors.Is(err, service.ErrNotificationFailed) {
		_ = c.Error(err)
		return true
	}
	respondError(c, err)
	return false
}

func (q ListPaymentsQuery) toFilter() (domain.PaymentFilter, error) {
	filter := domain.PaymentFilter{
		Take:         q.Take,
		Skip:         q.Skip,
		Search:       q.Search,
		PlatformIDs:  splitValues(q.PlatformIDs),
		FranchiseIDs: splitValues(q.FranchiseIDs),
		OnlyRefunded: q.OnlyRefunded,
		HideRefunded: q.HideRefunded,
		CreatedFrom:  q.CreatedFrom,
		CreatedTo:    q.CreatedTo,
		OrderBy:      domain.PaymentOrderField(q.OrderBy),
		OrderDesc:    q.OrderDesc,
	}

	for _, value := range splitValues(q.PaymentTypes) {
		paymentType := domain.PaymentType(strings.ToUpper(value))
		if !paymentType.Valid() {
			return filter, invalidInput(errors.New("unknown paymentType " + value))
		}
		filter.PaymentTypes = append(filter.PaymentTypes, paymentType)
	}

	switch filter.OrderBy {
	case "", domain.PaymentOrderByAmount, domain.PaymentOrderByRefundedAt,
		domain.PaymentOrderByCreatedAt, domain.PaymentOrderByUpdatedAt:
	default:
		return filter, invalidInput(errors.New("unknown orderBy " + q.OrderBy))
	}

	if filter.OnlyRefunded && filter.HideRefunded {
		return filter, invalidInput(errors.New("onlyRefunded and hideRefunded are exclusive"))
	}

	return filter, nil
}

func toPaymentResponse(payment *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            payment.ID,
		RideID:        payment.RideID,
		PlatformID:    payment.PlatformID,
		FranchiseID:   payment.FranchiseID,
		PaymentType:   string(payment.PaymentType),
		Amount:        payment.Amount,
		InitialAmount: payment.InitialAmount,
		Description:   payment.Description,
		Reason:        payment.Reason,
		RefundedAt:    formatTime(payment.RefundedAt),
		ProcessedAt:   formatTime(payment.ProcessedAt),
		CreatedAt:     formatTime(payment.CreatedAt),
		UpdatedAt:     formatTime(payment.UpdatedAt),
	}
}
