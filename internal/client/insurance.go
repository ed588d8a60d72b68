package client

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/service"
)

const insuranceProvider = "mertizfire"

// InsuranceClient talks to the insurance service.
type InsuranceClient struct {
	client *Client
}

// NewInsuranceClient creates a new InsuranceClient.
func NewInsuranceClient(cfg Config, logger logrus.FieldLogger) *InsuranceClient {
	return &InsuranceClient{client: New("insurance-service", cfg, logger)}
}

var _ service.InsuranceProvider = (*InsuranceClient)(nil)

type startInsuranceRequest struct {
	Provider      string  `json:"provider"`
	UserID        string  `json:"userId"`
	PlatformID    string  `json:"platformId"`
	KickboardCode string  `json:"kickboardCode"`
	Phone         string  `json:"phone"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

// Start opens a policy for the ride and returns its id.
func (c *InsuranceClient) Start(ctx context.Context, ride *domain.Ride) (string, error) {
	req := startInsuranceRequest{
		Provider:      insuranceProvider,
		UserID:        ride.UserID,
		PlatformID:    ride.PlatformID,
		KickboardCode: ride.DeviceCode,
		Phone:         ride.Phone,
	}
	if loc := ride.StartedPhoneLocation; loc != nil {
		req.Latitude = loc.Latitude
		req.Longitude = loc.Longitude
	}

	var resp struct {
		InsuranceID string `json:"insuranceId"`
	}
	if err := c.client.SendJSON(ctx, http.MethodPost, "/insurances", req, &resp); err != nil {
		return "", err
	}
	return resp.InsuranceID, nil
}

type endInsuranceRequest struct {
	EndedAt time.Time `json:"endedAt"`
}

// End closes the policy of the ride as of endedAt.
func (c *InsuranceClient) End(ctx context.Context, ride *domain.Ride, endedAt time.Time) error {
	if ride.InsuranceID == "" {
		return nil
	}
	req := endInsuranceRequest{EndedAt: endedAt}
	return c.client.SendJSON(ctx, http.MethodPost, "/insurances/"+escape(ride.InsuranceID)+"/end", req, nil)
}

// Cancel voids the policy of the ride.
func (c *InsuranceClient) Cancel(ctx context.Context, ride *domain.Ride) error {
	if ride.InsuranceID == "" {
		return nil
	}
	return c.client.SendJSON(ctx, http.MethodDelete, "/insurances/"+escape(ride.InsuranceID), nil, nil)
}
