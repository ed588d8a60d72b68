package domain

import "time"

// DeviceMode is the operating mode reported by a device.
type DeviceMode int

const (
	DeviceModeReady DeviceMode = iota
	DeviceModeInUse
	DeviceModeBroken
	DeviceModeCollected
	DeviceModeUnregistered
	DeviceModeDisabled
)

// Device is a rentable vehicle as known to device control.
type Device struct {
	Code        string
	Mode        DeviceMode
	FranchiseID string
	RegionID    string
	PhotoURL    string
	MaxSpeed    *float64
}

// DeviceStatus is one telemetry sample.
type DeviceStatus struct {
	Latitude   float64
	Longitude  float64
	GPSValid   bool
	Battery    float64
	Speed      float64
	PowerOn    bool
	IsEnabled  bool
	IsLightsOn bool
	IsFallDown bool
	CreatedAt  time.Time
}
