package service

import (
	"context"
	"errors"
	"time"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// DeclineOffer resolves one driver's offer as declined. Re-declining an
// already-declined offer is an idempotent no-op; declining an accepted offer
// fails. When the last pending offer of a still-pending request is declined,
// the request is marked rejected.
func (service *dispatchService) DeclineOffer(ctx context.Context, offerID, driverID, reason string) error {
	offer, err := service.loadOffer(ctx, offerID)
	if err != nil {
		return err
	}
	ctx = service.logger.WithRideID(ctx, offer.RideID)

	if offer.DriverID != driverID {
		return ride.ErrDriverMismatch
	}
	switch offer.Status {
	case ride.OfferDeclined:
		return nil
	case ride.OfferAccepted:
		return ride.ErrOfferAlreadyResolved
	}

	err = service.store.AtomicBatch(ctx, []ports.BatchOp{{
		Collection: ports.CollectionOffers,
		ID:         offerID,
		Patch: ports.Record{
			"status":         ride.OfferDeclined.String(),
			"responded_at":   time.Now().UTC().Format(time.RFC3339Nano),
			"decline_reason": reason,
		},
		Require: []ports.Condition{{Field: "status", Equals: ride.OfferPending.String()}},
	}})
	if err != nil {
		if errors.Is(err, ports.ErrConflict) {
			// resolved concurrently; re-read to keep decline idempotent
			current, lerr := service.loadOffer(ctx, offerID)
			if lerr == nil && current.Status == ride.OfferDeclined {
				return nil
			}
			return ride.ErrOfferAlreadyResolved
		}
		return err
	}

	service.logger.Info(ctx, "offer_declined", "Driver declined offer", map[string]any{
		"ride_id":   offer.RideID,
		"offer_id":  offerID,
		"driver_id": driverID,
		"reason":    reason,
	})

	service.rejectIfExhausted(ctx, offer.RideID)
	return nil
}

// rejectIfExhausted marks a pending request rejected once no pending offers
// remain. Best-effort: a conflict means an accept or cancel won in between,
// which is the desired outcome anyway.
func (service *dispatchService) rejectIfExhausted(ctx context.Context, rideID string) {
	pending, err := service.store.Query(ctx, ports.CollectionOffers, []ports.Filter{
		ports.Eq("ride_id", rideID),
		ports.Eq("status", ride.OfferPending.String()),
	}, nil, 1)
	if err != nil || len(pending) > 0 {
		return
	}

	err = service.store.AtomicBatch(ctx, []ports.BatchOp{{
		Collection: ports.CollectionRequests,
		ID:         rideID,
		Patch:      ports.Record{"status": ride.RequestRejected.String()},
		Require:    []ports.Condition{{Field: "status", Equals: ride.RequestPending.String()}},
	}})
	if err != nil && !errors.Is(err, ports.ErrConflict) {
		service.logger.Error(ctx, "request_reject_failed", "Failed to mark request rejected", err, map[string]any{
			"ride_id": rideID,
		})
		return
	}
	if err == nil {
		service.logger.Info(ctx, "request_rejected", "All offers declined", map[string]any{
			"ride_id": rideID,
		})
	}
}
