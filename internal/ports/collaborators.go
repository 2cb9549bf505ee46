package ports

import (
	"context"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/ride"
)

// Notifier is the external notification collaborator, called at each major
// transition. Strictly fire-and-forget: implementations log delivery
// failures and never surface them, so state transitions are never blocked.
type Notifier interface {
	OfferCreated(ctx context.Context, offer *ride.Offer)
	OfferAccepted(ctx context.Context, order *ride.Order)
	RideStatusChanged(ctx context.Context, order *ride.Order, previous ride.Status)
	RideCompleted(ctx context.Context, order *ride.Order)
	RideCancelled(ctx context.Context, order *ride.Order, reason string)
}

// CandidateSelector picks nearby available drivers for offer fan-out. The
// selection index is fed by the best-effort location stream and participates
// in no transactional guarantees.
type CandidateSelector interface {
	// UpsertCandidate records a driver's latest position in the index.
	UpsertCandidate(ctx context.Context, driverID string, at geo.Coordinates) error
	// RemoveCandidate drops a driver from the index (offline/busy).
	RemoveCandidate(ctx context.Context, driverID string) error
	// Nearby returns up to limit driver ids within radiusKM, closest first.
	Nearby(ctx context.Context, at geo.Coordinates, radiusKM float64, limit int) ([]string, error)
}
