package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rental/internal/service"
)

// PricingHandler handles fare estimates.
type PricingHandler struct {
	pricingService PricingService
}

// NewPricingHandler creates a new PricingHandler.
func NewPricingHandler(pricingService PricingService) *PricingHandler {
	return &PricingHandler{pricingService: pricingService}
}

// PricingRequest is the HTTP request body for estimating a fare.
type PricingRequest struct {
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Minutes         float64 `json:"minutes"`
	DiscountGroupID string  `json:"discountGroupId"`
	DiscountID      string  `json:"discountId"`
}

// TariffResponse is the price table of a region.
type TariffResponse struct {
	RegionID               string   `json:"regionId"`
	StandardPrice          float64  `json:"standardPrice"`
	NightlyPrice           float64  `json:"nightlyPrice"`
	StandardTime           float64  `json:"standardTime"`
	PerMinuteStandardPrice float64  `json:"perMinuteStandardPrice"`
	PerMinuteNightlyPrice  float64  `json:"perMinuteNightlyPrice"`
	SurchargePrice         float64  `json:"surchargePrice"`
	MaxPrice               *float64 `json:"maxPrice,omitempty"`
	HelmetLostPrice        *float64 `json:"helmetLostPrice,omitempty"`
}

// PricingResponse is a fare estimate together with the tariff it used.
type PricingResponse struct {
	Receipt ReceiptResponse `json:"receipt"`
	Pricing *TariffResponse `json:"pricing,omitempty"`
}

// GetPricing handles POST /rides/pricing
func (h *PricingHandler) GetPricing(c *gin.Context) {
	var req PricingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	result, err := h.pricingService.GetPricing(c.Request.Context(), service.PricingRequest{
		Lat:             req.Latitude,
		Lng:             req.Longitude,
		Minutes:         req.Minutes,
		DiscountGroupID: req.DiscountGroupID,
		DiscountID:      req.DiscountID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPricingResponse(result))
}

func toPricingResponse(result *service.PricingResult) PricingResponse {
	response := PricingResponse{Receipt: toReceiptResponse(result.Receipt)}
	if t := result.Tariff; t != nil {
		response.Pricing = &TariffResponse{
			RegionID:               t.RegionID,
			StandardPrice:          t.StandardPrice,
			NightlyPrice:           t.NightlyPrice,
			StandardTime:           t.StandardTime,
			PerMinuteStandardPrice: t.PerMinuteStandardPrice,
			PerMinuteNightlyPrice:  t.PerMinuteNightlyPrice,
			SurchargePrice:         t.SurchargePrice,
			MaxPrice:               t.MaxPrice,
			HelmetLostPrice:        t.HelmetLostPrice,
		}
	}
	return response
}
