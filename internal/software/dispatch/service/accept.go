package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/observability"
	"ride-dispatch/internal/ports"
)

// AcceptOffer is the winner-takes-all path: it binds the accepting driver,
// promotes the request into an assigned order and declines every sibling
// offer, all in one atomic commit. Every precondition (offer pending,
// request pending, driver available) is re-checked at commit time, so
// concurrent accepts, declines, cancels and expiry sweeps resolve to
// exactly one winner regardless of interleaving.
func (service *dispatchService) AcceptOffer(ctx context.Context, offerID, driverID string) (ports.AcceptOfferResult, error) {
	offer, err := service.loadOffer(ctx, offerID)
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}
	ctx = service.logger.WithRideID(ctx, offer.RideID)

	if offer.DriverID != driverID {
		return ports.AcceptOfferResult{}, ride.ErrDriverMismatch
	}
	if offer.Resolved() {
		return ports.AcceptOfferResult{}, ride.ErrOfferAlreadyResolved
	}

	request, err := service.loadRequest(ctx, offer.RideID)
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}
	if !request.Acceptable(time.Now().UTC()) {
		return ports.AcceptOfferResult{}, ride.ErrOfferAlreadyResolved
	}

	d, err := service.loadDriver(ctx, driverID)
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}
	if err := d.Bind(); err != nil {
		return ports.AcceptOfferResult{}, err
	}

	order, err := ride.NewOrder(uuid.NewString(), request, d.Snapshot())
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}

	orderRecord, err := ports.EncodeRecord(order)
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}
	driverRecord, err := ports.EncodeRecord(d)
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	ops := []ports.BatchOp{
		{
			Collection: ports.CollectionOffers,
			ID:         offerID,
			Patch:      ports.Record{"status": ride.OfferAccepted.String(), "responded_at": now},
			Require:    []ports.Condition{{Field: "status", Equals: ride.OfferPending.String()}},
		},
		{
			Collection: ports.CollectionRequests,
			ID:         request.ID,
			Patch:      ports.Record{"status": ride.RequestAccepted.String()},
			Require:    []ports.Condition{{Field: "status", Equals: ride.RequestPending.String()}},
		},
		{
			Collection: ports.CollectionDrivers,
			ID:         driverID,
			Patch:      driverRecord,
			Require:    []ports.Condition{{Field: "is_available", Equals: true}},
		},
		{
			Collection: ports.CollectionOrders,
			ID:         order.ID,
			Insert:     orderRecord,
		},
	}

	// sibling offers are declined in the same commit; optional so a driver
	// racing their own decline cannot abort the winner's batch
	siblings, err := service.store.Query(ctx, ports.CollectionOffers, []ports.Filter{
		ports.Eq("ride_id", request.ID),
		ports.Eq("status", ride.OfferPending.String()),
	}, nil, 0)
	if err != nil {
		return ports.AcceptOfferResult{}, err
	}
	for _, sibling := range siblings {
		if sibling.ID() == offerID {
			continue
		}
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionOffers,
			ID:         sibling.ID(),
			Patch:      ports.Record{"status": ride.OfferDeclined.String(), "responded_at": now},
			Require:    []ports.Condition{{Field: "status", Equals: ride.OfferPending.String()}},
			Optional:   true,
		})
	}

	if err := service.store.AtomicBatch(ctx, ops); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			// lost the race: another driver won, the rider cancelled, or
			// this driver went unavailable in the meantime
			observability.AcceptLosses.Inc()
			return ports.AcceptOfferResult{}, ride.ErrOfferAlreadyResolved
		}
		return ports.AcceptOfferResult{}, err
	}
	observability.AcceptWins.Inc()

	if service.selector != nil {
		if err := service.selector.RemoveCandidate(ctx, driverID); err != nil {
			service.logger.Error(ctx, "candidate_remove_failed", "Failed to drop bound driver from index", err, map[string]any{
				"driver_id": driverID,
			})
		}
	}
	service.notifier.OfferAccepted(ctx, order)

	service.logger.Info(ctx, "offer_accepted", "Driver bound to order", map[string]any{
		"ride_id":           request.ID,
		"order_id":          order.ID,
		"driver_id":         driverID,
		"declined_siblings": len(ops) - 4,
	})
	return ports.AcceptOfferResult{
		OrderID: order.ID,
		RideID:  request.ID,
		Status:  order.Status.String(),
		Order:   order,
	}, nil
}

// ----- shared loaders -----

func (service *dispatchService) loadOffer(ctx context.Context, offerID string) (*ride.Offer, error) {
	record, err := service.store.Get(ctx, ports.CollectionOffers, offerID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ride.ErrOfferNotFound
		}
		return nil, err
	}
	var offer ride.Offer
	if err := ports.DecodeRecord(record, &offer); err != nil {
		return nil, err
	}
	return &offer, nil
}

func (service *dispatchService) loadRequest(ctx context.Context, requestID string) (*ride.Request, error) {
	record, err := service.store.Get(ctx, ports.CollectionRequests, requestID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ride.ErrRequestNotFound
		}
		return nil, err
	}
	var request ride.Request
	if err := ports.DecodeRecord(record, &request); err != nil {
		return nil, err
	}
	return &request, nil
}

func (service *dispatchService) loadDriver(ctx context.Context, driverID string) (*driver.Driver, error) {
	record, err := service.store.Get(ctx, ports.CollectionDrivers, driverID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ride.ErrDriverNotFound
		}
		return nil, err
	}
	var d driver.Driver
	if err := ports.DecodeRecord(record, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
