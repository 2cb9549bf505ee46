package contracts

import "time"

// Envelope carries the cross-cutting headers every outbound message and
// websocket push may include.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"` // e.g. "dispatch-engine"
	SentAt        time.Time `json:"sent_at,omitempty"`  // UTC
}

// GeoPoint is the wire form of a pickup or destination.
type GeoPoint struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// VehicleInfo is the vehicle subset shown to riders.
type VehicleInfo struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Color string `json:"color,omitempty"`
	Plate string `json:"plate,omitempty"`
}

// DriverBrief is the driver subset pushed to riders once an order is bound.
type DriverBrief struct {
	DriverID string       `json:"driver_id"`
	Name     string       `json:"name,omitempty"`
	Rating   float64      `json:"rating,omitempty"`
	Vehicle  *VehicleInfo `json:"vehicle,omitempty"`
}
