package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rental/internal/service"
)

// WebhookHandler receives device events from device control.
type WebhookHandler struct {
	rideService RideService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(rideService RideService) *WebhookHandler {
	return &WebhookHandler{rideService: rideService}
}

type kickboardRef struct {
	KickboardCode string `json:"kickboardCode" binding:"required"`
}

// LowBatteryRequest is the body device control posts when a battery runs low.
type LowBatteryRequest struct {
	MetricsData struct {
		Kickboard kickboardRef `json:"kickboard"`
	} `json:"metricsData"`
}

// SpeedChangeRequest is the body device control posts when the speed
// limit of a device changed.
type SpeedChangeRequest struct {
	Kickboard kickboardRef `json:"kickboard"`
	Speed     float64      `json:"speed"`
}

// LowBattery handles POST /webhook/lowBattery
//
// Devices without an active ride are acknowledged with 204.
func (h *WebhookHandler) LowBattery(c *gin.Context) {
	var req LowBatteryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, err := h.rideService.HandleLowBattery(c.Request.Context(), req.MetricsData.Kickboard.KickboardCode)
	if errors.Is(err, service.ErrRideNotFound) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// SpeedChange handles POST /webhook/speedChange
func (h *WebhookHandler) SpeedChange(c *gin.Context) {
	var req SpeedChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	err := h.rideService.HandleSpeedChange(c.Request.Context(), req.Kickboard.KickboardCode, req.Speed)
	if err != nil && !errors.Is(err, service.ErrRideNotFound) {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
