package service

import (
	"context"

	"github.com/google/uuid"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/observability"
	"ride-dispatch/internal/ports"
)

// BroadcastOffers fans a pending request out to candidate drivers as one
// atomic batch of independently-owned offers. Zero candidates is not an
// error: the request simply waits with no offers until it expires.
func (service *dispatchService) BroadcastOffers(ctx context.Context, request *ride.Request) ([]string, error) {
	ctx = service.logger.WithRideID(ctx, request.ID)

	driverIDs, err := service.candidateDrivers(ctx, request)
	if err != nil {
		return nil, err
	}
	if len(driverIDs) == 0 {
		service.logger.Info(ctx, "offer_broadcast_empty", "No candidate drivers for request", map[string]any{
			"ride_id": request.ID,
		})
		return nil, nil
	}

	ops := make([]ports.BatchOp, 0, len(driverIDs))
	offerIDs := make([]string, 0, len(driverIDs))
	offers := make([]*ride.Offer, 0, len(driverIDs))
	for _, driverID := range driverIDs {
		offer := ride.NewOffer(uuid.NewString(), driverID, request)
		record, err := ports.EncodeRecord(offer)
		if err != nil {
			return nil, err
		}
		ops = append(ops, ports.BatchOp{
			Collection: ports.CollectionOffers,
			ID:         offer.ID,
			Insert:     record,
		})
		offerIDs = append(offerIDs, offer.ID)
		offers = append(offers, offer)
	}

	if err := service.store.AtomicBatch(ctx, ops); err != nil {
		return nil, err
	}

	observability.OffersBroadcast.Add(float64(len(offers)))
	for _, offer := range offers {
		service.notifier.OfferCreated(ctx, offer)
	}

	service.logger.Info(ctx, "offers_broadcast", "Offers sent to candidate drivers", map[string]any{
		"ride_id":     request.ID,
		"offers_sent": len(offerIDs),
	})
	return offerIDs, nil
}

// candidateDrivers picks nearby available drivers, closest first. When the
// geo index is unavailable it degrades to an unordered availability scan.
func (service *dispatchService) candidateDrivers(ctx context.Context, request *ride.Request) ([]string, error) {
	if service.selector != nil {
		ids, err := service.selector.Nearby(ctx, request.Pickup.Coordinates, service.searchRadius, service.maxCandidates)
		if err == nil {
			return service.filterAvailable(ctx, ids), nil
		}
		service.logger.Error(ctx, "candidate_index_failed", "Geo index lookup failed, falling back to scan", err, map[string]any{
			"ride_id": request.ID,
		})
	}

	records, err := service.store.Query(ctx, ports.CollectionDrivers,
		[]ports.Filter{ports.Eq("is_available", true)}, nil, service.maxCandidates)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID())
	}
	return ids, nil
}

// filterAvailable drops index hits whose profile is no longer available.
// The index is best-effort and may lag behind status changes.
func (service *dispatchService) filterAvailable(ctx context.Context, ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		record, err := service.store.Get(ctx, ports.CollectionDrivers, id)
		if err != nil {
			continue
		}
		if available, ok := record["is_available"].(bool); ok && available {
			out = append(out, id)
		}
	}
	return out
}
