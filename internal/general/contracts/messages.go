package contracts

import "time"

// RideOfferMessage is published per candidate driver when a request is
// broadcast. Routing key: "driver.offer.{driver_id}" on ExchangeDriverTopic.
type RideOfferMessage struct {
	OfferID             string   `json:"offer_id"`
	RideID              string   `json:"ride_id"`
	DriverID            string   `json:"driver_id"`
	Pickup              GeoPoint `json:"pickup_location"`
	Destination         GeoPoint `json:"destination_location"`
	EstimatedFare       float64  `json:"estimated_fare"`
	EstimatedDistanceKM float64  `json:"estimated_distance_km,omitempty"`
	EstimatedRideMin    int      `json:"estimated_ride_duration_minutes,omitempty"`
	ExpiresAt           string   `json:"expires_at,omitempty"` // ISO-8601
	Envelope
}

// RideStatusMessage is published at every order transition.
// Routing key: "ride.status.{status}" on ExchangeRideTopic.
type RideStatusMessage struct {
	OrderID    string       `json:"order_id"`
	RideID     string       `json:"ride_id"`
	CustomerID string       `json:"customer_id"`
	Status     string       `json:"status"`
	Timestamp  time.Time    `json:"timestamp"`
	DriverInfo *DriverBrief `json:"driver_info,omitempty"`
	FinalFare  *float64     `json:"final_fare,omitempty"` // set on completed
	Reason     string       `json:"reason,omitempty"`     // set on cancelled
	Envelope
}
