package service

import (
	"context"
	"errors"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/observability"
	"ride-dispatch/internal/ports"
)

// UpdateRideStatus advances a bound order one step along the status chain.
// Only the bound driver may advance; the previous-status precondition is
// re-checked at commit time so concurrent updates cannot skip a step.
func (service *lifecycleService) UpdateRideStatus(ctx context.Context, in ports.UpdateRideStatusInput) (*ride.Order, error) {
	ctx = service.logger.WithRideID(ctx, in.OrderID)

	order, err := service.loadOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(in.DriverID) {
		return nil, ride.ErrDriverMismatch
	}

	previous := order.Status
	if err := order.Advance(in.Status, in.Notes, in.Location); err != nil {
		return nil, err
	}

	record, err := ports.EncodeRecord(order)
	if err != nil {
		return nil, err
	}

	ops := []ports.BatchOp{{
		Collection: ports.CollectionOrders,
		ID:         in.OrderID,
		Patch:      record,
		Require:    []ports.Condition{{Field: "status", Equals: previous.String()}},
	}}

	if in.Status.Terminal() {
		// terminal side effects: release the driver back to online, and on
		// completion bump the ride counter. Skipped if the driver profile is
		// gone or already released.
		d, derr := service.loadDriver(ctx, in.DriverID)
		if derr == nil {
			if in.Status == ride.StatusCompleted {
				d.CompleteRide()
			} else {
				d.Release()
			}
			driverRecord, rerr := ports.EncodeRecord(d)
			if rerr == nil {
				ops = append(ops, ports.BatchOp{
					Collection: ports.CollectionDrivers,
					ID:         in.DriverID,
					Patch:      driverRecord,
					Require:    []ports.Condition{{Field: "status", Equals: "busy"}},
					Optional:   true,
				})
			}
		}
	}

	if err := service.store.AtomicBatch(ctx, ops); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, ride.ErrInvalidTransition
		}
		return nil, err
	}

	service.notifier.RideStatusChanged(ctx, order, previous)
	switch in.Status {
	case ride.StatusCompleted:
		observability.RidesCompleted.Inc()
		service.notifier.RideCompleted(ctx, order)
	case ride.StatusCancelled:
		observability.RidesCancelled.Inc()
		service.notifier.RideCancelled(ctx, order, in.Notes)
	}

	service.logger.Info(ctx, "ride_status_updated", "Order status advanced", map[string]any{
		"ride_id":     in.OrderID,
		"driver_id":   in.DriverID,
		"from_status": previous.String(),
		"to_status":   in.Status.String(),
	})
	return order, nil
}
