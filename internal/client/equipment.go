package client

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/service"
)

const helmetStatusReturned = "RETURNED"

// EquipmentClient reads helmet borrowing records.
type EquipmentClient struct {
	client *Client
}

// NewEquipmentClient creates a new EquipmentClient.
func NewEquipmentClient(cfg Config, logger logrus.FieldLogger) *EquipmentClient {
	return &EquipmentClient{client: New("equipment-service", cfg, logger)}
}

var _ service.EquipmentTracker = (*EquipmentClient)(nil)

// HasUnreturned reports whether a helmet borrowed during the ride is still
// out. A ride without a borrowing record has nothing to return.
func (c *EquipmentClient) HasUnreturned(ctx context.Context, ride *domain.Ride) (bool, error) {
	var resp struct {
		Helmet struct {
			Status string `json:"status"`
		} `json:"helmet"`
	}

	err := c.client.GetJSON(ctx, "/rides/"+escape(ride.ID)+"/borrowedHelmet", nil, &resp)
	if IsStatus(err, http.StatusNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return resp.Helmet.Status != helmetStatusReturned, nil
}
