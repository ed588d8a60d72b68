package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"rental/internal/domain"
	"rental/internal/service"
)

// DeviceClient talks to the device control service.
type DeviceClient struct {
	client *Client
}

// NewDeviceClient creates a new DeviceClient.
func NewDeviceClient(cfg Config, logger logrus.FieldLogger) *DeviceClient {
	return &DeviceClient{client: New("device-service", cfg, logger)}
}

var _ service.DeviceController = (*DeviceClient)(nil)

type deviceResponse struct {
	KickboardCode string   `json:"kickboardCode"`
	Mode          int      `json:"mode"`
	FranchiseID   string   `json:"franchiseId"`
	RegionID      string   `json:"regionId"`
	Photo         string   `json:"photo"`
	MaxSpeed      *float64 `json:"maxSpeed"`
}

type deviceStatusResponse struct {
	GPS struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		IsValid   bool    `json:"isValid"`
	} `json:"gps"`
	Power struct {
		IsOn    bool `json:"isOn"`
		Scooter struct {
			Battery float64 `json:"battery"`
		} `json:"scooter"`
	} `json:"power"`
	IsEnabled  bool      `json:"isEnabled"`
	IsLightsOn bool      `json:"isLightsOn"`
	IsFallDown bool      `json:"isFallDown"`
	Speed      float64   `json:"speed"`
	CreatedAt  time.Time `json:"createdAt"`
}

func (r deviceStatusResponse) toDomain() *domain.DeviceStatus {
	return &domain.DeviceStatus{
		Latitude:   r.GPS.Latitude,
		Longitude:  r.GPS.Longitude,
		GPSValid:   r.GPS.IsValid,
		Battery:    r.Power.Scooter.Battery,
		Speed:      r.Speed,
		PowerOn:    r.Power.IsOn,
		IsEnabled:  r.IsEnabled,
		IsLightsOn: r.IsLightsOn,
		IsFallDown: r.IsFallDown,
		CreatedAt:  r.CreatedAt,
	}
}

func devicePath(code string, parts ...string) string {
	path := "/kickboards/" + escape(code)
	for _, p := range parts {
		path += "/" + p
	}
	return path
}

// GetDevice returns the device registered under code.
func (c *DeviceClient) GetDevice(ctx context.Context, code string) (*domain.Device, error) {
	var resp struct {
		Kickboard deviceResponse `json:"kickboard"`
	}
	if err := c.client.GetJSON(ctx, devicePath(code), nil, &resp); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: device %s not found", service.ErrInvalidInput, code)
		}
		return nil, err
	}

	k := resp.Kickboard
	return &domain.Device{
		Code:        k.KickboardCode,
		Mode:        domain.DeviceMode(k.Mode),
		FranchiseID: k.FranchiseID,
		RegionID:    k.RegionID,
		PhotoURL:    k.Photo,
		MaxSpeed:    k.MaxSpeed,
	}, nil
}

// GetLatestStatus returns the most recent telemetry sample of the device.
func (c *DeviceClient) GetLatestStatus(ctx context.Context, code string) (*domain.DeviceStatus, error) {
	var resp struct {
		Status deviceStatusResponse `json:"status"`
	}
	if err := c.client.GetJSON(ctx, devicePath(code, "status"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Status.toDomain(), nil
}

// GetStatusTimeline returns telemetry samples between from and to.
func (c *DeviceClient) GetStatusTimeline(ctx context.Context, code string, from, to time.Time) ([]*domain.DeviceStatus, error) {
	query := url.Values{}
	query.Set("startedAt", from.UTC().Format(time.RFC3339))
	query.Set("endedAt", to.UTC().Format(time.RFC3339))

	var resp struct {
		Statuses []deviceStatusResponse `json:"statuses"`
	}
	if err := c.client.GetJSON(ctx, devicePath(code, "status", "timeline"), query, &resp); err != nil {
		return nil, err
	}

	timeline := make([]*domain.DeviceStatus, 0, len(resp.Statuses))
	for _, s := range resp.Statuses {
		timeline = append(timeline, s.toDomain())
	}
	return timeline, nil
}

// Start enables the device for riding.
func (c *DeviceClient) Start(ctx context.Context, code string) error {
	return c.client.SendJSON(ctx, http.MethodPost, devicePath(code, "start"), nil, nil)
}

// Stop disables the device.
func (c *DeviceClient) Stop(ctx context.Context, code string) error {
	return c.client.SendJSON(ctx, http.MethodPost, devicePath(code, "stop"), nil, nil)
}

// SetLights switches the lights of the device.
func (c *DeviceClient) SetLights(ctx context.Context, code string, on bool) error {
	action := "off"
	if on {
		action = "on"
	}
	return c.client.SendJSON(ctx, http.MethodPost, devicePath(code, "lights", action), nil, nil)
}

// SetLock locks or unlocks the device.
func (c *DeviceClient) SetLock(ctx context.Context, code string, locked bool) error {
	action := "unlock"
	if locked {
		action = "lock"
	}
	return c.client.SendJSON(ctx, http.MethodPost, devicePath(code, action), nil, nil)
}

// SetMaxSpeed sets the speed limit of the device. nil restores the
// device default.
func (c *DeviceClient) SetMaxSpeed(ctx context.Context, code string, speed *float64) error {
	body := map[string]*float64{"maxSpeed": speed}
	return c.client.SendJSON(ctx, http.MethodPut, devicePath(code, "maxSpeed"), body, nil)
}

// SetPhoto stores the return photo on the device. An empty url clears it.
func (c *DeviceClient) SetPhoto(ctx context.Context, code string, photoURL string) error {
	var photo *string
	if photoURL != "" {
		photo = &photoURL
	}
	body := map[string]*string{"photo": photo}
	return c.client.SendJSON(ctx, http.MethodPut, devicePath(code, "photo"), body, nil)
}
