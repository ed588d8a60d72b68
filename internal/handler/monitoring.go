package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rental/internal/domain"
	"rental/internal/service"
)

// MonitoringHandler handles the post-termination review of rides.
type MonitoringHandler struct {
	monitoringService MonitoringService
	rides             rideGetter
}

// NewMonitoringHandler creates a new MonitoringHandler.
func NewMonitoringHandler(monitoringService MonitoringService, rides RideService) *MonitoringHandler {
	return &MonitoringHandler{
		monitoringService: monitoringService,
		rides:             rides,
	}
}

// SetMonitoringStatusRequest is the HTTP request body for changing the
// monitoring status of a ride.
type SetMonitoringStatusRequest struct {
	MonitoringStatus string   `json:"monitoringStatus" binding:"required"`
	SendMessage      bool     `json:"sendMessage"`
	Price            *float64 `json:"price"`
}

// MonitoringLogResponse is one monitoring log entry.
type MonitoringLogResponse struct {
	ID        string `json:"rideMonitoringLogId"`
	RideID    string `json:"rideId"`
	LogType   string `json:"monitoringLogType"`
	Message   string `json:"message"`
	CreatedAt string `json:"createdAt"`
}

// ListLogsResponse is the HTTP response for monitoring log listings.
type ListLogsResponse struct {
	Logs []MonitoringLogResponse `json:"monitoringLogs"`
}

// ListLogs handles GET /internal/rides/:rideId/monitoring
func (h *MonitoringHandler) ListLogs(c *gin.Context) {
	ride, ok := loadRide(c, h.rides)
	if !ok {
		return
	}

	logs, err := h.monitoringService.ListLogs(c.Request.Context(), ride)
	if err != nil {
		respondError(c, err)
		return
	}

	response := ListLogsResponse{Logs: make([]MonitoringLogResponse, 0, len(logs))}
	for _, entry := range logs {
		response.Logs = append(response.Logs, MonitoringLogResponse{
			ID:        entry.ID,
			RideID:    entry.RideID,
			LogType:   string(entry.LogType),
			Message:   entry.Message,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}

	respondJSON(c, http.StatusOK, response)
}

// SetMonitoringStatus handles POST /internal/rides/:rideId/monitoring
func (h *MonitoringHandler) SetMonitoringStatus(c *gin.Context) {
	var req SetMonitoringStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rides)
	if !ok {
		return
	}

	updated, err := h.monitoringService.SetMonitoringStatus(c.Request.Context(), ride, service.SetMonitoringStatusRequest{
		Status:      domain.MonitoringStatus(strings.ToUpper(req.MonitoringStatus)),
		SendMessage: req.SendMessage,
		Price:       req.Price,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(updated))
}
