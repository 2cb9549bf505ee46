package ride

import (
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
)

// OfferStatus is the lifecycle of one driver's copy of a broadcast request.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferDeclined OfferStatus = "declined"
)

// Valid reports whether the offer status is one of the allowed constants.
func (status OfferStatus) Valid() bool {
	switch status {
	case OfferPending, OfferAccepted, OfferDeclined:
		return true
	default:
		return false
	}
}

// String returns the string representation of the OfferStatus.
func (status OfferStatus) String() string {
	return string(status)
}

// Offer is one candidate driver's independently-owned copy of a ride request.
// Offers for one ride are created in a single batch; exactly one per ride may
// ever end accepted.
type Offer struct {
	ID                  string          `json:"id"`
	RideID              string          `json:"ride_id"`
	DriverID            string          `json:"driver_id"`
	Pickup              geo.Location    `json:"pickup"`
	Destination         geo.Location    `json:"destination"`
	Pricing             pricing.Pricing `json:"pricing"`
	EstimatedDistanceKM float64         `json:"estimated_distance_km"`
	EstimatedDuration   int             `json:"estimated_duration_min"`
	Status              OfferStatus     `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	RespondedAt         *time.Time      `json:"responded_at,omitempty"`
}

// NewOffer builds a pending offer for one candidate driver from a request.
func NewOffer(id, driverID string, request *Request) *Offer {
	return &Offer{
		ID:                  id,
		RideID:              request.ID,
		DriverID:            driverID,
		Pickup:              request.Pickup,
		Destination:         request.Destination,
		Pricing:             request.Pricing,
		EstimatedDistanceKM: request.Pricing.EstimatedDistanceKM,
		EstimatedDuration:   request.Pricing.EstimatedDurationMin,
		Status:              OfferPending,
		CreatedAt:           time.Now().UTC(),
	}
}

// Resolved reports whether the offer reached a final state.
func (offer *Offer) Resolved() bool {
	return offer.Status != OfferPending
}
