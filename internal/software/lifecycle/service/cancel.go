package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/observability"
	"ride-dispatch/internal/ports"
)

// CancelRideRequest cancels a still-pending request on behalf of the rider
// who opened it. The pending-status precondition is checked at commit time,
// so a cancel racing an accept resolves to exactly one winner.
func (service *lifecycleService) CancelRideRequest(ctx context.Context, requestID, customerID, reason string) error {
	ctx = service.logger.WithRideID(ctx, requestID)

	request, err := service.loadRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request.CustomerID != customerID {
		return ride.ErrCustomerMismatch
	}
	if request.Status.Terminal() {
		return ride.ErrInvalidTransition
	}

	err = service.store.AtomicBatch(ctx, []ports.BatchOp{{
		Collection: ports.CollectionRequests,
		ID:         requestID,
		Patch: ports.Record{
			"status":        ride.RequestCancelled.String(),
			"cancel_reason": strings.TrimSpace(reason),
		},
		Require: []ports.Condition{{Field: "status", Equals: ride.RequestPending.String()}},
	}})
	if err != nil {
		if errors.Is(err, ports.ErrConflict) {
			// a driver accepted (or the sweeper expired it) first
			return ride.ErrInvalidTransition
		}
		return err
	}

	service.declineDanglingOffers(ctx, requestID)
	observability.RidesCancelled.Inc()

	service.logger.Info(ctx, "ride_request_cancelled", "Ride request cancelled", map[string]any{
		"ride_id": requestID,
		"reason":  reason,
	})
	return nil
}

// CancelOrder cancels a bound order from any non-terminal state and releases
// the driver back to online. Only the rider who owns the order may cancel it.
func (service *lifecycleService) CancelOrder(ctx context.Context, orderID, cancelledBy, reason string) (*ride.Order, error) {
	ctx = service.logger.WithRideID(ctx, orderID)

	order, err := service.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != cancelledBy {
		return nil, ride.ErrCustomerMismatch
	}

	previous := order.Status
	notes := strings.TrimSpace(reason)
	if notes == "" {
		notes = "cancelled by " + cancelledBy
	}
	if err := order.Advance(ride.StatusCancelled, notes, nil); err != nil {
		return nil, err
	}

	record, err := ports.EncodeRecord(order)
	if err != nil {
		return nil, err
	}
	record["cancelled_by"] = cancelledBy

	err = service.store.AtomicBatch(ctx, []ports.BatchOp{
		{
			Collection: ports.CollectionOrders,
			ID:         orderID,
			Patch:      record,
			Require:    []ports.Condition{{Field: "status", Equals: previous.String()}},
		},
		{
			// release the bound driver; skipped if they are not busy
			Collection: ports.CollectionDrivers,
			ID:         order.DriverID,
			Patch: ports.Record{
				"status":       "online",
				"is_online":    true,
				"is_available": true,
				"updated_at":   time.Now().UTC().Format(time.RFC3339Nano),
			},
			Require:  []ports.Condition{{Field: "status", Equals: "busy"}},
			Optional: true,
		},
	})
	if err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, ride.ErrInvalidTransition
		}
		return nil, err
	}

	observability.RidesCancelled.Inc()
	service.notifier.RideCancelled(ctx, order, notes)

	service.logger.Info(ctx, "ride_cancelled", "Order cancelled", map[string]any{
		"ride_id":      orderID,
		"cancelled_by": cancelledBy,
		"from_status":  previous.String(),
		"reason":       reason,
	})
	return order, nil
}
