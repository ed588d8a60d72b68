package domain

import "time"

// Location is a geolocation snapshot owned by a ride.
type Location struct {
	ID        string
	Latitude  float64
	Longitude float64
	Geohash   string
	CreatedAt time.Time
}
