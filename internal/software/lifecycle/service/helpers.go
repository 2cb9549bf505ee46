package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

// generateCorrelationID creates a simple correlation ID for tracing requests.
func generateCorrelationID() string {
	var b [3]byte // 6 hex chars
	_, _ = rand.Read(b[:])
	ts := time.Now().UTC().Format("20060102T150405")
	return "req_" + ts + "_" + hex.EncodeToString(b[:])
}

// loadRequest fetches and decodes one ride request.
func (service *lifecycleService) loadRequest(ctx context.Context, requestID string) (*ride.Request, error) {
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

// loadOrder fetches and decodes one ride order.
func (service *lifecycleService) loadOrder(ctx context.Context, orderID string) (*ride.Order, error) {
	record, err := service.store.Get(ctx, ports.CollectionOrders, orderID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ride.ErrOrderNotFound
		}
		return nil, err
	}
	var order ride.Order
	if err := ports.DecodeRecord(record, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// loadDriver fetches and decodes one driver profile.
func (service *lifecycleService) loadDriver(ctx context.Context, driverID string) (*driver.Driver, error) {
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

// declineDanglingOffers marks every still-pending offer of a dead request as
// declined. Best-effort cleanup: conflicts and errors are logged, not returned.
func (service *lifecycleService) declineDanglingOffers(ctx context.Context, rideID string) {
	offers, err := service.store.Query(ctx, ports.CollectionOffers, []ports.Filter{
		ports.Eq("ride_id", rideID),
		ports.Eq("status", ride.OfferPending.String()),
	}, nil, 0)
	if err != nil {
		service.logger.Error(ctx, "dangling_offers_query_failed", "Failed to list pending offers", err, map[string]any{
			"ride_id": rideID,
		})
		return
	}
	if len(offers) == 0 {
		return
	}

	now := time.Now().UTC()
	ops := make([]ports.BatchOp, 0, len(offers))
	for _, offer := range offers {
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionOffers,
			ID:         offer.ID(),
			Patch: ports.Record{
				"status":       ride.OfferDeclined.String(),
				"responded_at": now.Format(time.RFC3339Nano),
			},
			Require:  []ports.Condition{{Field: "status", Equals: ride.OfferPending.String()}},
			Optional: true,
		})
	}
	if err := service.store.AtomicBatch(ctx, ops); err != nil {
		service.logger.Error(ctx, "dangling_offers_decline_failed", "Failed to decline pending offers", err, map[string]any{
			"ride_id": rideID,
		})
	}
}
