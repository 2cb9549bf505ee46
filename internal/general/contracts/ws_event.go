package contracts

import "time"

// WSRiderRequestUpdate mirrors ride-request transitions over the rider
// WebSocket (pending, accepted, cancelled, expired, rejected).
type WSRiderRequestUpdate struct {
	Type      string    `json:"type"` // "ride_request_update"
	RequestID string    `json:"request_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}

// WSRiderOrderUpdate mirrors order transitions over the rider WebSocket.
type WSRiderOrderUpdate struct {
	Type       string       `json:"type"` // "ride_status_update"
	OrderID    string       `json:"order_id"`
	RideID     string       `json:"ride_id"`
	Status     string       `json:"status"`
	DriverInfo *DriverBrief `json:"driver_info,omitempty"`
	Timestamp  time.Time    `json:"timestamp"`
	Envelope
}

// WSDriverRideOffer mirrors "ride_offer" to drivers.
type WSDriverRideOffer struct {
	Type             string   `json:"type"` // "ride_offer"
	OfferID          string   `json:"offer_id"`
	RideID           string   `json:"ride_id"`
	Pickup           GeoPoint `json:"pickup_location"`
	Destination      GeoPoint `json:"destination_location"`
	EstimatedFare    float64  `json:"estimated_fare,omitempty"`
	EstimatedRideMin int      `json:"estimated_ride_duration_minutes,omitempty"`
	ExpiresAt        string   `json:"expires_at,omitempty"` // ISO-8601
	Envelope
}

// WSDriverOrderUpdate mirrors bound-order transitions to the driver.
type WSDriverOrderUpdate struct {
	Type      string    `json:"type"` // "order_status_update"
	OrderID   string    `json:"order_id"`
	RideID    string    `json:"ride_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Envelope
}
