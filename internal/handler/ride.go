package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rental/internal/domain"
	"rental/internal/middleware"
	"rental/internal/service"
)

const birthdayLayout = "2006-01-02"

var errUnknownSwitch = errors.New("state must be on or off")

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService RideService
	platforms   PlatformResolver
}

// NewRideHandler creates a new RideHandler. platforms resolves the
// platform named in internal start requests.
func NewRideHandler(rideService RideService, platforms PlatformResolver) *RideHandler {
	return &RideHandler{
		rideService: rideService,
		platforms:   platforms,
	}
}

// StartRideRequest is the HTTP request body for starting a ride.
type StartRideRequest struct {
	KickboardCode   string  `json:"kickboardCode" binding:"required"`
	UserID          string  `json:"userId" binding:"required"`
	RealName        string  `json:"realname" binding:"required"`
	Phone           string  `json:"phone" binding:"required"`
	Birthday        string  `json:"birthday" binding:"required"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	DiscountGroupID string  `json:"discountGroupId"`
	DiscountID      string  `json:"discountId"`
	Debug           bool    `json:"debug"`

	// PlatformID is honoured on internal routes only.
	PlatformID string `json:"platformId"`
}

// ChangeDiscountRequest is the HTTP request body for changing the discount
// of an active ride.
type ChangeDiscountRequest struct {
	DiscountGroupID string `json:"discountGroupId"`
	DiscountID      string `json:"discountId"`
}

// UploadPhotoRequest is the HTTP request body for uploading a return photo.
type UploadPhotoRequest struct {
	PhotoURL string `json:"photoUrl" binding:"required"`
}

// MaxSpeedRequest is the HTTP request body for limiting the device speed.
// A null maxSpeed restores the device default.
type MaxSpeedRequest struct {
	MaxSpeed *float64 `json:"maxSpeed"`
}

// TerminateRideQuery is the query of DELETE /rides/:rideId.
type TerminateRideQuery struct {
	Latitude       *float64  `form:"latitude"`
	Longitude      *float64  `form:"longitude"`
	TerminatedType string    `form:"terminatedType"`
	TerminatedAt   time.Time `form:"terminatedAt"`
}

// ListRidesQuery is the query of GET /rides.
type ListRidesQuery struct {
	Take             int       `form:"take"`
	Skip             int       `form:"skip"`
	Search           string    `form:"search"`
	PlatformIDs      []string  `form:"platformIds"`
	FranchiseIDs     []string  `form:"franchiseIds"`
	RegionIDs        []string  `form:"regionIds"`
	DiscountGroupIDs []string  `form:"discountGroupIds"`
	TerminatedTypes  []string  `form:"terminatedTypes"`
	KickboardCodes   []string  `form:"kickboardCodes"`
	MonitoringStatus []string  `form:"monitoringStatus"`
	StartedAtFrom    time.Time `form:"startedAtFrom"`
	StartedAtTo      time.Time `form:"startedAtTo"`
	TerminatedBefore time.Time `form:"terminatedBefore"`
	ShowTerminated   *bool     `form:"showTerminated"`
	OnlyTerminated   bool      `form:"onlyTerminated"`
	OnlyPhoto        bool      `form:"onlyPhoto"`
	OnlyMissingPhoto bool      `form:"onlyMissingPhoto"`
	OrderBy          string    `form:"orderBy"`
	OrderDesc        bool      `form:"orderDesc"`
}

// LocationResponse is a geolocation snapshot.
type LocationResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Geohash   string  `json:"geohash,omitempty"`
}

// ReceiptUnitResponse is one fare component.
type ReceiptUnitResponse struct {
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// ReceiptResponse is the fare breakdown of a ride.
type ReceiptResponse struct {
	ID        string              `json:"receiptId,omitempty"`
	Standard  ReceiptUnitResponse `json:"standard"`
	PerMinute ReceiptUnitResponse `json:"perMinute"`
	Surcharge ReceiptUnitResponse `json:"surcharge"`
	IsNightly bool                `json:"isNightly"`
	Price     float64             `json:"price"`
	Discount  float64             `json:"discount"`
	Total     float64             `json:"total"`
	CreatedAt string              `json:"createdAt,omitempty"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                       string            `json:"rideId"`
	KickboardCode            string            `json:"kickboardCode"`
	PlatformID               string            `json:"platformId"`
	FranchiseID              string            `json:"franchiseId"`
	RegionID                 string            `json:"regionId"`
	UserID                   string            `json:"userId"`
	RealName                 string            `json:"realname"`
	Phone                    string            `json:"phone"`
	Birthday                 string            `json:"birthday,omitempty"`
	InsuranceID              string            `json:"insuranceId,omitempty"`
	PhotoURL                 string            `json:"photo,omitempty"`
	DiscountGroupID          string            `json:"discountGroupId,omitempty"`
	DiscountID               string            `json:"discountId,omitempty"`
	StartedPhoneLocation     *LocationResponse `json:"startedPhoneLocation,omitempty"`
	StartedKickboardLocation *LocationResponse `json:"startedKickboardLocation,omitempty"`
	TerminatedPhoneLocation  *LocationResponse `json:"terminatedPhoneLocation,omitempty"`
	TerminatedKickboardLoc   *LocationResponse `json:"terminatedKickboardLocation,omitempty"`
	TerminatedType           string            `json:"terminatedType,omitempty"`
	MonitoringStatus         string            `json:"monitoringStatus"`
	Receipt                  *ReceiptResponse  `json:"receipt,omitempty"`
	Price                    float64           `json:"price"`
	StartedAt                string            `json:"startedAt"`
	TerminatedAt             string            `json:"terminatedAt,omitempty"`
	CreatedAt                string            `json:"createdAt"`
	UpdatedAt                string            `json:"updatedAt"`
}

// ListRidesResponse is the HTTP response for ride listings.
type ListRidesResponse struct {
	Rides []RideResponse `json:"rides"`
	Total int            `json:"total"`
}

// DeviceStatusResponse is one telemetry sample of the ride's device.
type DeviceStatusResponse struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	GPSValid   bool    `json:"isGpsValid"`
	Battery    float64 `json:"battery"`
	Speed      float64 `json:"speed"`
	PowerOn    bool    `json:"power"`
	IsEnabled  bool    `json:"isEnabled"`
	IsLightsOn bool    `json:"isLightsOn"`
	IsFallDown bool    `json:"isFallDown"`
	CreatedAt  string  `json:"createdAt"`
}

// TimelineResponse is the telemetry recorded during a ride.
type TimelineResponse struct {
	Statuses []DeviceStatusResponse `json:"statuses"`
}

// StartRide handles POST /rides
func (h *RideHandler) StartRide(c *gin.Context) {
	var req StartRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	birthday, err := time.Parse(birthdayLayout, req.Birthday)
	if err != nil {
		respondError(c, invalidInput(errors.New("birthday must be YYYY-MM-DD")))
		return
	}

	platform, ok := h.resolvePlatform(c, req.PlatformID)
	if !ok {
		return
	}

	ride, err := h.rideService.StartRide(c.Request.Context(), platform, service.StartRideRequest{
		DeviceCode:      req.KickboardCode,
		UserID:          req.UserID,
		RealName:        req.RealName,
		Phone:           req.Phone,
		Birthday:        birthday,
		Lat:             req.Latitude,
		Lng:             req.Longitude,
		DiscountGroupID: req.DiscountGroupID,
		DiscountID:      req.DiscountID,
		Debug:           req.Debug,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// resolvePlatform returns the caller's platform, or the one named in the
// request body on internal routes.
func (h *RideHandler) resolvePlatform(c *gin.Context, platformID string) (*domain.Platform, bool) {
	if key, ok := middleware.AccessKeyFrom(c); ok {
		return &key.Platform, true
	}

	if platformID == "" {
		respondError(c, invalidInput(errors.New("platformId is required")))
		return nil, false
	}

	platform, err := h.platforms.GetPlatform(c.Request.Context(), platformID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return platform, true
}

// GetRide handles GET /rides/:rideId
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}
	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListRides handles GET /rides
func (h *RideHandler) ListRides(c *gin.Context) {
	var query ListRidesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		respondError(c, err)
		return
	}

	if scope := platformScope(c); scope != "" {
		filter.PlatformIDs = []string{scope}
	}

	rides, total, err := h.rideService.ListRides(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := ListRidesResponse{Rides: make([]RideResponse, 0, len(rides)), Total: total}
	for _, ride := range rides {
		response.Rides = append(response.Rides, toRideResponse(ride))
	}

	respondJSON(c, http.StatusOK, response)
}

// TerminateRide handles DELETE /rides/:rideId
//
// Platforms always terminate on behalf of the rider. Internal callers
// default to an admin termination and may backdate it.
func (h *RideHandler) TerminateRide(c *gin.Context) {
	var query TerminateRideQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	req := service.TerminateRideRequest{
		Type: domain.TerminatedTypeUserRequested,
		Lat:  query.Latitude,
		Lng:  query.Longitude,
	}
	if platformScope(c) == "" {
		req.Type = domain.TerminatedTypeAdminRequested
		if query.TerminatedType != "" {
			req.Type = domain.TerminatedType(strings.ToUpper(query.TerminatedType))
		}
		req.TerminatedAt = query.TerminatedAt
	}

	if !req.Type.Valid() {
		respondError(c, invalidInput(errors.New("unknown terminatedType")))
		return
	}

	terminated, err := h.rideService.TerminateRide(c.Request.Context(), ride, req)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(terminated))
}

// ChangeDiscount handles POST /rides/:rideId/discount
func (h *RideHandler) ChangeDiscount(c *gin.Context) {
	var req ChangeDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	updated, err := h.rideService.ChangeDiscount(c.Request.Context(), ride, req.DiscountGroupID, req.DiscountID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(updated))
}

// UploadPhoto handles POST /rides/:rideId/photo
func (h *RideHandler) UploadPhoto(c *gin.Context) {
	var req UploadPhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	updated, err := h.rideService.UploadRidePhoto(c.Request.Context(), ride, req.PhotoURL)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(updated))
}

// SetLights handles GET /rides/:rideId/lights/:state
func (h *RideHandler) SetLights(c *gin.Context) {
	on, err := parseSwitch(c.Param("state"))
	if err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	if err := h.rideService.SetLights(c.Request.Context(), ride, on); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetLock handles GET /rides/:rideId/lock/:state
func (h *RideHandler) SetLock(c *gin.Context) {
	locked, err := parseSwitch(c.Param("state"))
	if err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	if err := h.rideService.SetLock(c.Request.Context(), ride, locked); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetMaxSpeed handles PUT /rides/:rideId/maxSpeed
func (h *RideHandler) SetMaxSpeed(c *gin.Context) {
	var req MaxSpeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidInput(err))
		return
	}

	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	if err := h.rideService.SetMaxSpeed(c.Request.Context(), ride, req.MaxSpeed); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetStatus handles GET /rides/:rideId/status
func (h *RideHandler) GetStatus(c *gin.Context) {
	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	status, err := h.rideService.GetStatus(c.Request.Context(), ride)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDeviceStatusResponse(status))
}

// GetTimeline handles GET /rides/:rideId/timeline
func (h *RideHandler) GetTimeline(c *gin.Context) {
	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	statuses, err := h.rideService.GetTimeline(c.Request.Context(), ride)
	if err != nil {
		respondError(c, err)
		return
	}

	response := TimelineResponse{Statuses: make([]DeviceStatusResponse, 0, len(statuses))}
	for _, status := range statuses {
		response.Statuses = append(response.Statuses, toDeviceStatusResponse(status))
	}

	respondJSON(c, http.StatusOK, response)
}

// GetPricing handles GET /rides/:rideId/pricing
func (h *RideHandler) GetPricing(c *gin.Context) {
	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	result, err := h.rideService.GetCurrentPricing(c.Request.Context(), ride)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPricingResponse(result))
}

// CancelInsurance handles DELETE /rides/:rideId/insurance
func (h *RideHandler) CancelInsurance(c *gin.Context) {
	ride, ok := loadRide(c, h.rideService)
	if !ok {
		return
	}

	if err := h.rideService.CancelInsurance(c.Request.Context(), ride); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (q ListRidesQuery) toFilter() (domain.RideFilter, error) {
	filter := domain.RideFilter{
		Take:             q.Take,
		Skip:             q.Skip,
		Search:           q.Search,
		PlatformIDs:      splitValues(q.PlatformIDs),
		FranchiseIDs:     splitValues(q.FranchiseIDs),
		RegionIDs:        splitValues(q.RegionIDs),
		DiscountGroupIDs: splitValues(q.DiscountGroupIDs),
		DeviceCodes:      splitValues(q.KickboardCodes),
		StartedAtFrom:    q.StartedAtFrom,
		StartedAtTo:      q.StartedAtTo,
		TerminatedBefore: q.TerminatedBefore,
		ShowTerminated:   true,
		OnlyTerminated:   q.OnlyTerminated,
		OnlyPhoto:        q.OnlyPhoto,
		OnlyMissingPhoto: q.OnlyMissingPhoto,
		OrderBy:          domain.RideOrderField(q.OrderBy),
		OrderDesc:        q.OrderDesc,
	}
	if q.ShowTerminated != nil {
		filter.ShowTerminated = *q.ShowTerminated
	}

	for _, value := range splitValues(q.TerminatedTypes) {
		terminatedType := domain.TerminatedType(strings.ToUpper(value))
		if !terminatedType.Valid() {
			return filter, invalidInput(errors.New("unknown terminatedType " + value))
		}
		filter.TerminatedTypes = append(filter.TerminatedTypes, terminatedType)
	}

	for _, value := range splitValues(q.MonitoringStatus) {
		status := domain.MonitoringStatus(strings.ToUpper(value))
		if !status.Valid() {
			return filter, invalidInput(errors.New("unknown monitoringStatus " + value))
		}
		filter.MonitoringStatus = append(filter.MonitoringStatus, status)
	}

	switch filter.OrderBy {
	case "", domain.RideOrderByPrice, domain.RideOrderByStartedAt,
		domain.RideOrderByTerminatedAt, domain.RideOrderByCreatedAt,
		domain.RideOrderByUpdatedAt:
	default:
		return filter, invalidInput(errors.New("unknown orderBy " + q.OrderBy))
	}

	return filter, nil
}

// splitValues accepts both repeated and comma separated query values.
func splitValues(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseSwitch(state string) (bool, error) {
	switch strings.ToLower(state) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, errUnknownSwitch
}

func toRideResponse(ride *domain.Ride) RideResponse {
	response := RideResponse{
		ID:                       ride.ID,
		KickboardCode:            ride.DeviceCode,
		PlatformID:               ride.PlatformID,
		FranchiseID:              ride.FranchiseID,
		RegionID:                 ride.RegionID,
		UserID:                   ride.UserID,
		RealName:                 ride.RealName,
		Phone:                    ride.Phone,
		InsuranceID:              ride.InsuranceID,
		PhotoURL:                 ride.PhotoURL,
		DiscountGroupID:          ride.DiscountGroupID,
		DiscountID:               ride.DiscountID,
		StartedPhoneLocation:     toLocationResponse(ride.StartedPhoneLocation),
		StartedKickboardLocation: toLocationResponse(ride.StartedDeviceLocation),
		TerminatedPhoneLocation:  toLocationResponse(ride.TerminatedPhoneLocation),
		TerminatedKickboardLoc:   toLocationResponse(ride.TerminatedDeviceLocation),
		TerminatedType:           string(ride.TerminatedType),
		MonitoringStatus:         string(ride.MonitoringStatus),
		Price:                    ride.Price,
		StartedAt:                formatTime(ride.StartedAt),
		TerminatedAt:             formatTime(ride.TerminatedAt),
		CreatedAt:                formatTime(ride.CreatedAt),
		UpdatedAt:                formatTime(ride.UpdatedAt),
	}

	if !ride.Birthday.IsZero() {
		response.Birthday = ride.Birthday.Format(birthdayLayout)
	}
	if ride.Receipt != nil {
		receipt := toReceiptResponse(*ride.Receipt)
		response.Receipt = &receipt
	}

	return response
}

func toLocationResponse(location *domain.Location) *LocationResponse {
	if location == nil {
		return nil
	}
	return &LocationResponse{
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
		Geohash:   location.Geohash,
	}
}

func toReceiptResponse(receipt domain.Receipt) ReceiptResponse {
	unit := func(u domain.ReceiptUnit) ReceiptUnitResponse {
		return ReceiptUnitResponse{Price: u.Price, Discount: u.Discount, Total: u.Total}
	}
	return ReceiptResponse{
		ID:        receipt.ID,
		Standard:  unit(receipt.Standard),
		PerMinute: unit(receipt.PerMinute),
		Surcharge: unit(receipt.Surcharge),
		IsNightly: receipt.IsNightly,
		Price:     receipt.Price,
		Discount:  receipt.Discount,
		Total:     receipt.Total,
		CreatedAt: formatTime(receipt.CreatedAt),
	}
}

func toDeviceStatusResponse(status *domain.DeviceStatus) DeviceStatusResponse {
	return DeviceStatusResponse{
		Latitude:   status.Latitude,
		Longitude:  status.Longitude,
		GPSValid:   status.GPSValid,
		Battery:    status.Battery,
		Speed:      status.Speed,
		PowerOn:    status.PowerOn,
		IsEnabled:  status.IsEnabled,
		IsLightsOn: status.IsLightsOn,
		IsFallDown: status.IsFallDown,
		CreatedAt:  formatTime(status.CreatedAt),
	}
}
