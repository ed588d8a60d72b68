package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/geo"
	"rental/internal/service"
)

// LocationClient resolves geofences and regional pricing.
type LocationClient struct {
	client *Client
}

// NewLocationClient creates a new LocationClient.
func NewLocationClient(cfg Config, logger logrus.FieldLogger) *LocationClient {
	return &LocationClient{client: New("location-service", cfg, logger)}
}

var _ service.TariffProvider = (*LocationClient)(nil)

type geofenceResponse struct {
	RegionID string `json:"regionId"`
	Profile  struct {
		HasSurcharge bool `json:"hasSurcharge"`
	} `json:"profile"`
}

type pricingResponse struct {
	StandardPrice          float64  `json:"standardPrice"`
	NightlyPrice           float64  `json:"nightlyPrice"`
	StandardTime           float64  `json:"standardTime"`
	PerMinuteStandardPrice float64  `json:"perMinuteStandardPrice"`
	PerMinuteNightlyPrice  float64  `json:"perMinuteNightlyPrice"`
	SurchargePrice         float64  `json:"surchargePrice"`
	MaxPrice               *float64 `json:"maxPrice"`
	HelmetLostPrice        *float64 `json:"helmetLostPrice"`
}

func (c *LocationClient) geofence(ctx context.Context, p geo.Point) (*geofenceResponse, error) {
	query := url.Values{}
	query.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	query.Set("lng", strconv.FormatFloat(p.Lng, 'f', -1, 64))

	var resp struct {
		Geofence geofenceResponse `json:"geofence"`
	}
	if err := c.client.GetJSON(ctx, "/geofences/byLocation", query, &resp); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: no service region at %v,%v", service.ErrInvalidInput, p.Lat, p.Lng)
		}
		return nil, err
	}
	return &resp.Geofence, nil
}

// GetTariff returns the price table of the region p falls in.
func (c *LocationClient) GetTariff(ctx context.Context, p geo.Point) (*domain.Tariff, error) {
	fence, err := c.geofence(ctx, p)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Pricing pricingResponse `json:"pricing"`
	}
	if err := c.client.GetJSON(ctx, "/regions/"+escape(fence.RegionID)+"/pricing", nil, &resp); err != nil {
		return nil, err
	}

	pr := resp.Pricing
	return &domain.Tariff{
		RegionID:               fence.RegionID,
		StandardPrice:          pr.StandardPrice,
		NightlyPrice:           pr.NightlyPrice,
		StandardTime:           pr.StandardTime,
		PerMinuteStandardPrice: pr.PerMinuteStandardPrice,
		PerMinuteNightlyPrice:  pr.PerMinuteNightlyPrice,
		SurchargePrice:         pr.SurchargePrice,
		MaxPrice:               pr.MaxPrice,
		HelmetLostPrice:        pr.HelmetLostPrice,
	}, nil
}

// GetProfile returns the geofence flags at p.
func (c *LocationClient) GetProfile(ctx context.Context, p geo.Point) (*domain.LocationProfile, error) {
	fence, err := c.geofence(ctx, p)
	if err != nil {
		return nil, err
	}
	return &domain.LocationProfile{HasSurcharge: fence.Profile.HasSurcharge}, nil
}
