package postgres

import (
	"context"
	"database/sql"

	"rental/internal/domain"
)

// receiptStore persists receipts. Receipts are written once, inside the
// terminate transaction.
type receiptStore struct {
	q Querier
}

func (s *receiptStore) create(ctx context.Context, receipt *domain.Receipt) error {
	query := `
		INSERT INTO receipts (id, ride_id,
			standard_price, standard_discount, standard_total,
			per_minute_price, per_minute_discount, per_minute_total,
			surcharge_price, surcharge_discount, surcharge_total,
			is_nightly, price, discount, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := s.q.ExecContext(ctx, query,
		receipt.ID,
		receipt.RideID,
		receipt.Standard.Price,
		receipt.Standard.Discount,
		receipt.Standard.Total,
		receipt.PerMinute.Price,
		receipt.PerMinute.Discount,
		receipt.PerMinute.Total,
		receipt.Surcharge.Price,
		receipt.Surcharge.Discount,
		receipt.Surcharge.Total,
		receipt.IsNightly,
		receipt.Price,
		receipt.Discount,
		receipt.Total,
		receipt.CreatedAt,
	)

	return err
}

// receiptScan receives a LEFT JOINed receipt.
type receiptScan struct {
	id                              sql.NullString
	stdPrice, stdDiscount, stdTotal sql.NullFloat64
	minPrice, minDiscount, minTotal sql.NullFloat64
	surPrice, surDiscount, surTotal sql.NullFloat64
	isNightly                       sql.NullBool
	price, discount, total          sql.NullFloat64
	createdAt                       sql.NullTime
}

func (r *receiptScan) targets() []any {
	return []any{
		&r.id,
		&r.stdPrice, &r.stdDiscount, &r.stdTotal,
		&r.minPrice, &r.minDiscount, &r.minTotal,
		&r.surPrice, &r.surDiscount, &r.surTotal,
		&r.isNightly, &r.price, &r.discount, &r.total, &r.createdAt,
	}
}

func (r *receiptScan) receipt(rideID string) *domain.Receipt {
	if !r.id.Valid {
		return nil
	}
	return &domain.Receipt{
		ID:        r.id.String,
		RideID:    rideID,
		Standard:  domain.ReceiptUnit{Price: r.stdPrice.Float64, Discount: r.stdDiscount.Float64, Total: r.stdTotal.Float64},
		PerMinute: domain.ReceiptUnit{Price: r.minPrice.Float64, Discount: r.minDiscount.Float64, Total: r.minTotal.Float64},
		Surcharge: domain.ReceiptUnit{Price: r.surPrice.Float64, Discount: r.surDiscount.Float64, Total: r.surTotal.Float64},
		IsNightly: r.isNightly.Bool,
		Price:     r.price.Float64,
		Discount:  r.discount.Float64,
		Total:     r.total.Float64,
		CreatedAt: r.createdAt.Time,
	}
}
