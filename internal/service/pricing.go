package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"rental/internal/domain"
	"rental/internal/geo"
	"rental/internal/pricing"
)

// PricingService resolves tariffs and discounts and computes receipts.
type PricingService struct {
	tariffs   TariffProvider
	discounts DiscountProvider
}

// NewPricingService creates a new PricingService.
func NewPricingService(tariffs TariffProvider, discounts DiscountProvider) *PricingService {
	return &PricingService{
		tariffs:   tariffs,
		discounts: discounts,
	}
}

// PricingRequest contains the parameters for pricing a ride.
type PricingRequest struct {
	Lat             float64
	Lng             float64
	Minutes         float64
	DiscountGroupID string
	DiscountID      string
}

// PricingResult contains the computed receipt and the tariff it used.
type PricingResult struct {
	Receipt domain.Receipt
	Tariff  *domain.Tariff
}

// GetPricing computes the receipt of a ride of the given length ending at
// the given coordinates.
func (s *PricingService) GetPricing(ctx context.Context, req PricingRequest) (*PricingResult, error) {
	point := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if !point.Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}

	if req.Minutes < 0 {
		return nil, ErrInvalidTerminateTime
	}

	if err := validateDiscountPair(req.DiscountGroupID, req.DiscountID); err != nil {
		return nil, err
	}

	tariff, err := s.tariffs.GetTariff(ctx, point)
	if err != nil {
		return nil, err
	}

	profile, err := s.tariffs.GetProfile(ctx, point)
	if err != nil {
		return nil, err
	}

	var group *domain.DiscountGroup
	if req.DiscountGroupID != "" {
		group, err = s.discounts.GetDiscountGroup(ctx, req.DiscountGroupID)
		if err != nil {
			return nil, err
		}

		if _, err := s.discounts.GetDiscount(ctx, req.DiscountGroupID, req.DiscountID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	receipt := pricing.Compute(pricing.Input{
		Tariff:    *tariff,
		Profile:   *profile,
		Discount:  group,
		Minutes:   req.Minutes,
		IsNightly: pricing.IsNightly(now),
	})

	return &PricingResult{Receipt: receipt, Tariff: tariff}, nil
}

// GetPricingByRide prices a ride that ends at terminatedAt at the given
// coordinates, using the discount attached to the ride.
func (s *PricingService) GetPricingByRide(ctx context.Context, ride *domain.Ride, lat, lng float64, terminatedAt time.Time) (*PricingResult, error) {
	minutes, err := rideMinutes(ride.StartedAt, terminatedAt)
	if err != nil {
		return nil, err
	}

	return s.GetPricing(ctx, PricingRequest{
		Lat:             lat,
		Lng:             lng,
		Minutes:         minutes,
		DiscountGroupID: ride.DiscountGroupID,
		DiscountID:      ride.DiscountID,
	})
}

// rideMinutes returns the whole minutes elapsed between start and end.
func rideMinutes(startedAt, terminatedAt time.Time) (float64, error) {
	elapsed := terminatedAt.Sub(startedAt)
	if elapsed < 0 {
		return 0, ErrInvalidTerminateTime
	}

	return math.Floor(elapsed.Minutes()), nil
}

func validateDiscountPair(groupID, discountID string) error {
	if (groupID == "") != (discountID == "") {
		return fmt.Errorf("%w: discount group and discount must be given together", ErrInvalidInput)
	}
	return nil
}
