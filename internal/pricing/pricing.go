// Package pricing computes ride receipts from a region tariff.
package pricing

import (
	"time"

	"rental/internal/domain"
)

// Input contains everything needed to price a ride.
type Input struct {
	Tariff    domain.Tariff
	Profile   domain.LocationProfile
	Discount  *domain.DiscountGroup
	Minutes   float64
	IsNightly bool
}

// Compute builds a receipt for the given input. The result has no ID or
// ride reference; callers attach those when persisting.
func Compute(in Input) domain.Receipt {
	receipt := domain.Receipt{IsNightly: in.IsNightly}

	receipt.Standard = standardUnit(in)
	receipt.PerMinute = perMinuteUnit(in)
	receipt.Surcharge = surchargeUnit(in, receipt.Standard)

	receipt.Price = receipt.Standard.Price + receipt.PerMinute.Price + receipt.Surcharge.Price
	receipt.Discount = receipt.Standard.Discount + receipt.PerMinute.Discount + receipt.Surcharge.Discount
	receipt.Total = receipt.Standard.Total + receipt.PerMinute.Total + receipt.Surcharge.Total

	// Only the aggregate is capped; units keep their own totals.
	if in.Tariff.MaxPrice != nil && receipt.Total > *in.Tariff.MaxPrice {
		receipt.Total = *in.Tariff.MaxPrice
	}

	return receipt
}

// IsNightly reports whether the nightly tariff applies at t.
// Nightly pricing is currently disabled.
func IsNightly(t time.Time) bool {
	return false
}

func standardUnit(in Input) domain.ReceiptUnit {
	unit := domain.ReceiptUnit{Price: in.Tariff.StandardPrice}
	if in.IsNightly {
		unit.Price = in.Tariff.NightlyPrice
	}

	if d := in.Discount; d != nil && d.IsStandardIncluded {
		if d.RatioPriceDiscount != 0 {
			unit.Discount = ratioOf(unit.Price, d.RatioPriceDiscount)
		}
		if d.StaticPriceDiscount != 0 {
			unit.Discount = clamp(unit.Discount+d.StaticPriceDiscount, unit.Price)
		}
	}

	unit.Total = unit.Price - unit.Discount
	return unit
}

func perMinuteUnit(in Input) domain.ReceiptUnit {
	perMinute := in.Tariff.PerMinuteStandardPrice
	if in.IsNightly {
		perMinute = in.Tariff.PerMinuteNightlyPrice
	}

	billable := in.Minutes - in.Tariff.StandardTime
	if billable < 0 {
		billable = 0
	}

	var freeMinutes float64
	if in.Discount != nil {
		freeMinutes = clamp(in.Discount.StaticMinuteDiscount, billable)
	}

	unit := domain.ReceiptUnit{
		Price:    billable * perMinute,
		Discount: freeMinutes * perMinute,
	}

	// An included discount overrides free minutes instead of stacking.
	if d := in.Discount; d != nil && d.IsPerMinuteIncluded {
		if d.RatioPriceDiscount != 0 {
			unit.Discount = ratioOf(unit.Price, d.RatioPriceDiscount)
		}
		if d.StaticPriceDiscount != 0 {
			unit.Discount = clamp(unit.Discount+d.StaticPriceDiscount, unit.Price)
		}
	}

	unit.Total = unit.Price - unit.Discount
	return unit
}

func surchargeUnit(in Input, standard domain.ReceiptUnit) domain.ReceiptUnit {
	var unit domain.ReceiptUnit
	if !in.Profile.HasSurcharge {
		return unit
	}

	unit.Price = in.Tariff.SurchargePrice
	if d := in.Discount; d != nil && d.IsSurchargeIncluded {
		if d.RatioPriceDiscount != 0 {
			unit.Discount = ratioOf(unit.Price, d.RatioPriceDiscount)
		}
		// The static allotment is shared with the standard unit and only
		// the part the standard unit did not consume carries over.
		if d.StaticPriceDiscount != 0 && standard.Total == 0 {
			unit.Discount = clamp(unit.Discount+d.StaticPriceDiscount-standard.Discount, unit.Price)
		}
	}

	unit.Total = unit.Price - unit.Discount
	return unit
}

func ratioOf(price, percent float64) float64 {
	return price * (percent / 100)
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	return v
}
