package ports

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
	"ride-dispatch/internal/domain/ride"
)

// ----- DTOs for the Lifecycle Engine -----

// CreateRideRequestInput is the validated rider input for a new ride request.
type CreateRideRequestInput struct {
	CustomerID    string
	Pickup        geo.Location
	Destination   geo.Location
	ServiceType   pricing.ServiceType
	PaymentMethod pricing.PaymentMethod
	Notes         string
}

// CreateRideRequestResult is returned by LifecycleService.CreateRideRequest.
type CreateRideRequestResult struct {
	RequestID      string          `json:"request_id"`
	Status         string          `json:"status"`
	Pricing        pricing.Pricing `json:"pricing"`
	ExpiresAt      time.Time       `json:"expires_at"`
	OffersSent     int             `json:"offers_sent"`
	BroadcastError string          `json:"broadcast_error,omitempty"`
}

// UpdateRideStatusInput is a driver-initiated order transition.
type UpdateRideStatusInput struct {
	OrderID  string
	DriverID string
	Status   ride.Status
	Location *geo.Coordinates
	Notes    string
}

// RideEstimate is one per-tier quote returned by GetRideEstimates.
type RideEstimate struct {
	ServiceType      pricing.ServiceType `json:"service_type"`
	Pricing          pricing.Pricing     `json:"pricing"`
	EstimatedWaitMin int                 `json:"estimated_wait_min"`
	Available        bool                `json:"available"`
}

// ----- Lifecycle Engine interface -----

// LifecycleService owns the ride-request and ride-order state machines and
// every rider- and driver-side mutation against them.
type LifecycleService interface {
	CreateRideRequest(ctx context.Context, in CreateRideRequestInput) (CreateRideRequestResult, error)
	CancelRideRequest(ctx context.Context, requestID, customerID, reason string) error
	CancelOrder(ctx context.Context, orderID, cancelledBy, reason string) (*ride.Order, error)
	UpdateRideStatus(ctx context.Context, in UpdateRideStatusInput) (*ride.Order, error)
	GetRideEstimates(ctx context.Context, pickup, destination geo.Location) ([]RideEstimate, error)
	UpdateDriverStatus(ctx context.Context, driverID string, status driver.Status) error
	UpdateDriverLocation(ctx context.Context, driverID string, location geo.Coordinates) error
}

// ----- DTOs for Dispatch Arbitration -----

// AcceptOfferResult is returned to the winning driver.
type AcceptOfferResult struct {
	OrderID string      `json:"order_id"`
	RideID  string      `json:"ride_id"`
	Status  string      `json:"status"`
	Order   *ride.Order `json:"order"`
}

// ----- Dispatch Arbitration interface -----

// DispatchService broadcasts offers and arbitrates concurrent driver
// responses: exactly one accepted offer and one bound order per request.
type DispatchService interface {
	// BroadcastOffers fans a pending request out to candidate drivers in one
	// batch and returns the created offer ids.
	BroadcastOffers(ctx context.Context, request *ride.Request) ([]string, error)
	AcceptOffer(ctx context.Context, offerID, driverID string) (AcceptOfferResult, error)
	DeclineOffer(ctx context.Context, offerID, driverID, reason string) error
}

// ----- DTOs for Earnings & History -----

// EarningsSummary aggregates a driver's completed fares per window.
type EarningsSummary struct {
	Today    float64 `json:"today"`
	Week     float64 `json:"week"`
	Month    float64 `json:"month"`
	Currency string  `json:"currency"`
}

// ----- Earnings & History interface -----

// EarningsService derives read-only projections over terminal orders.
type EarningsService interface {
	EarningsFor(ctx context.Context, driverID string, now time.Time) (EarningsSummary, error)
	HistoryForDriver(ctx context.Context, driverID string, limit int) ([]*ride.Order, error)
	HistoryForCustomer(ctx context.Context, customerID string, limit int) ([]*ride.Order, error)
}
