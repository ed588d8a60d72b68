package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"rental/internal/domain"
	"rental/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

const paymentColumns = `id, ride_id, platform_id, franchise_id, payment_type, amount, initial_amount,
	description, reason, refunded_at, processed_at, created_at, updated_at`

var paymentOrderColumns = map[domain.PaymentOrderField]string{
	domain.PaymentOrderByAmount:     "amount",
	domain.PaymentOrderByRefundedAt: "refunded_at",
	domain.PaymentOrderByCreatedAt:  "created_at",
	domain.PaymentOrderByUpdatedAt:  "updated_at",
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	var description, reason sql.NullString
	var refundedAt, processedAt sql.NullTime

	err := row.Scan(
		&payment.ID,
		&payment.RideID,
		&payment.PlatformID,
		&payment.FranchiseID,
		&payment.PaymentType,
		&payment.Amount,
		&payment.InitialAmount,
		&description,
		&reason,
		&refundedAt,
		&processedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	payment.Description = description.String
	payment.Reason = reason.String
	payment.RefundedAt = refundedAt.Time
	payment.ProcessedAt = processedAt.Time

	return &payment, nil
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, ride_id, platform_id, franchise_id, payment_type, amount, initial_amount,
			description, reason, refunded_at, processed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.RideID,
		payment.PlatformID,
		payment.FranchiseID,
		payment.PaymentType,
		payment.Amount,
		payment.InitialAmount,
		toNullString(payment.Description),
		toNullString(payment.Reason),
		toNullTime(payment.RefundedAt),
		toNullTime(payment.ProcessedAt),
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	return err
}

// GetByID retrieves a payment of a ride by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, rideID, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ride_id = $1 AND id = $2`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, rideID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return payment, nil
}

// ListByRide retrieves every payment of a ride, oldest first.
func (r *PaymentRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ride_id = $1 ORDER BY created_at ASC`

	rows, err := r.q.QueryContext(ctx, query, rideID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}

// List retrieves payments matching the filter and the total match count.
func (r *PaymentRepository) List(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, int, error) {
	where := paymentWhere(filter)

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := paymentOrderColumns[filter.OrderBy]
	if !ok {
		column = "created_at"
	}
	query := `SELECT ` + paymentColumns + ` FROM payments` + where.sql() +
		" ORDER BY " + column + " " + orderDirection(filter.OrderDesc)
	query += where.page(filter.Take, filter.Skip)

	rows, err := r.q.QueryContext(ctx, query, where.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, payment)
	}

	return payments, total, rows.Err()
}

func paymentWhere(f domain.PaymentFilter) *whereBuilder {
	w := &whereBuilder{}

	if f.RideID != "" {
		w.add("ride_id = ?", f.RideID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		w.add("(id::text ILIKE ? OR ride_id::text ILIKE ? OR description ILIKE ? OR reason ILIKE ?)",
			like, like, like, like)
	}
	if len(f.PlatformIDs) > 0 {
		w.add("platform_id = ANY(?)", pq.Array(f.PlatformIDs))
	}
	if len(f.FranchiseIDs) > 0 {
		w.add("franchise_id = ANY(?)", pq.Array(f.FranchiseIDs))
	}
	if len(f.PaymentTypes) > 0 {
		types := make([]string, len(f.PaymentTypes))
		for i, t := range f.PaymentTypes {
			types[i] = string(t)
		}
		w.add("payment_type = ANY(?)", pq.Array(types))
	}
	if f.OnlyRefunded {
		w.add("refunded_at IS NOT NULL")
	} else if f.HideRefunded {
		w.add("refunded_at IS NULL")
	}
	if !f.CreatedFrom.IsZero() {
		w.add("created_at >= ?", f.CreatedFrom)
	}
	if !f.CreatedTo.IsZero() {
		w.add("created_at <= ?", f.CreatedTo)
	}

	return w
}

// Update stores amount, reason and settlement timestamps.
func (r *PaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	query := `
		UPDATE payments
		SET amount = $1, reason = $2, refunded_at = $3, processed_at = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		payment.Amount,
		toNullString(payment.Reason),
		toNullTime(payment.RefundedAt),
		toNullTime(payment.ProcessedAt),
		payment.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SumOutstanding returns the sum of non-refunded payment amounts of a ride.
func (r *PaymentRepository) SumOutstanding(ctx context.Context, rideID string) (float64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE ride_id = $1 AND refunded_at IS NULL`

	var sum float64
	if err := r.q.QueryRowContext(ctx, query, rideID).Scan(&sum); err != nil {
		return 0, err
	}

	return sum, nil
}

// Ensure PaymentRepository implements repository.PaymentRepository.
var _ repository.PaymentRepository = (*PaymentRepository)(nil)
