package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/service"
)

// DiscountClient talks to the discount service.
type DiscountClient struct {
	client *Client
	now    func() time.Time
}

// NewDiscountClient creates a new DiscountClient.
func NewDiscountClient(cfg Config, logger logrus.FieldLogger) *DiscountClient {
	return &DiscountClient{client: New("discount-service", cfg, logger), now: time.Now}
}

var _ service.DiscountProvider = (*DiscountClient)(nil)

type discountGroupResponse struct {
	DiscountGroupID      string  `json:"discountGroupId"`
	Name                 string  `json:"name"`
	RatioPriceDiscount   float64 `json:"ratioPriceDiscount"`
	StaticPriceDiscount  float64 `json:"staticPriceDiscount"`
	StaticMinuteDiscount float64 `json:"staticMinuteDiscount"`
	IsStandardIncluded   bool    `json:"isStandardPriceIncluded"`
	IsPerMinuteIncluded  bool    `json:"isPerMinutePriceIncluded"`
	IsSurchargeIncluded  bool    `json:"isSurchargeIncluded"`
}

type discountResponse struct {
	DiscountID      string     `json:"discountId"`
	DiscountGroupID string     `json:"discountGroupId"`
	LockedAt        *time.Time `json:"lockedAt"`
	UsedAt          *time.Time `json:"usedAt"`
}

func discountGroupPath(groupID string) string {
	return "/discountGroups/" + escape(groupID)
}

func discountPath(groupID, discountID string) string {
	return discountGroupPath(groupID) + "/discounts/" + escape(discountID)
}

// GetDiscountGroup returns the terms of a discount group.
func (c *DiscountClient) GetDiscountGroup(ctx context.Context, groupID string) (*domain.DiscountGroup, error) {
	var resp struct {
		DiscountGroup discountGroupResponse `json:"discountGroup"`
	}
	if err := c.client.GetJSON(ctx, discountGroupPath(groupID), nil, &resp); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: discount group %s not found", service.ErrInvalidInput, groupID)
		}
		return nil, err
	}

	g := resp.DiscountGroup
	return &domain.DiscountGroup{
		ID:                   g.DiscountGroupID,
		Name:                 g.Name,
		RatioPriceDiscount:   g.RatioPriceDiscount,
		StaticPriceDiscount:  g.StaticPriceDiscount,
		StaticMinuteDiscount: g.StaticMinuteDiscount,
		IsStandardIncluded:   g.IsStandardIncluded,
		IsPerMinuteIncluded:  g.IsPerMinuteIncluded,
		IsSurchargeIncluded:  g.IsSurchargeIncluded,
	}, nil
}

// GetDiscount returns one discount of a group.
func (c *DiscountClient) GetDiscount(ctx context.Context, groupID, discountID string) (*domain.Discount, error) {
	var resp struct {
		Discount discountResponse `json:"discount"`
	}
	if err := c.client.GetJSON(ctx, discountPath(groupID, discountID), nil, &resp); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: discount %s not found", service.ErrInvalidInput, discountID)
		}
		return nil, err
	}

	d := resp.Discount
	discount := &domain.Discount{ID: d.DiscountID, DiscountGroupID: d.DiscountGroupID}
	if d.LockedAt != nil {
		discount.LockedAt = *d.LockedAt
	}
	if d.UsedAt != nil {
		discount.UsedAt = *d.UsedAt
	}
	return discount, nil
}

// Lock reserves the discount for a running ride.
func (c *DiscountClient) Lock(ctx context.Context, groupID, discountID string) error {
	now := c.now()
	return c.patch(ctx, groupID, discountID, map[string]*time.Time{"lockedAt": &now})
}

// Unlock releases a reserved discount.
func (c *DiscountClient) Unlock(ctx context.Context, groupID, discountID string) error {
	return c.patch(ctx, groupID, discountID, map[string]*time.Time{"lockedAt": nil})
}

// Use consumes the discount.
func (c *DiscountClient) Use(ctx context.Context, groupID, discountID string) error {
	now := c.now()
	return c.patch(ctx, groupID, discountID, map[string]*time.Time{"usedAt": &now})
}

func (c *DiscountClient) patch(ctx context.Context, groupID, discountID string, body map[string]*time.Time) error {
	return c.client.SendJSON(ctx, http.MethodPatch, discountPath(groupID, discountID), body, nil)
}
