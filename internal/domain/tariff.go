package domain

import "time"

// Tariff holds a region's price table.
type Tariff struct {
	RegionID               string
	StandardPrice          float64
	NightlyPrice           float64
	StandardTime           float64 // included minutes
	PerMinuteStandardPrice float64
	PerMinuteNightlyPrice  float64
	SurchargePrice         float64
	MaxPrice               *float64
	HelmetLostPrice        *float64
}

// LocationProfile holds the flags of the geofence a coordinate falls in.
type LocationProfile struct {
	HasSurcharge bool
}

// DiscountGroup holds the terms shared by the discounts of a group.
type DiscountGroup struct {
	ID                   string
	Name                 string
	RatioPriceDiscount   float64
	StaticPriceDiscount  float64
	StaticMinuteDiscount float64
	IsStandardIncluded   bool
	IsPerMinuteIncluded  bool
	IsSurchargeIncluded  bool
}

// Discount is one issued discount instance.
type Discount struct {
	ID              string
	DiscountGroupID string
	LockedAt        time.Time
	UsedAt          time.Time
}
