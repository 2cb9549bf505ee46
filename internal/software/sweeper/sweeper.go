// Package sweeper writes the terminal expired status onto pending ride
// requests whose TTL lapsed. Reads already fold expiry in, so the sweeper is
// pure housekeeping: it keeps the stored state converging with the effective
// one and cleans up the dangling offers of dead requests.
package sweeper

import (
	"context"
	"errors"
	"time"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/observability"
	"ride-dispatch/internal/ports"
)

// DefaultInterval is how often the sweep loop runs.
const DefaultInterval = 30 * time.Second

// Sweeper is the background expiry housekeeping service.
type Sweeper struct {
	logger   *logger.Logger
	store    ports.Store
	interval time.Duration
}

// New creates a sweeper. A non-positive interval falls back to the default.
func New(logger *logger.Logger, store ports.Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sweeper{logger: logger, store: store, interval: interval}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (sweeper *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweeper.interval)
	defer ticker.Stop()

	sweeper.logger.Info(ctx, "sweeper_started", "Expiry sweeper running", map[string]any{
		"interval": sweeper.interval.String(),
	})

	for {
		select {
		case <-ctx.Done():
			sweeper.logger.Info(ctx, "sweeper_stopped", "Expiry sweeper shutting down", nil)
			return
		case <-ticker.C:
			expired, err := sweeper.SweepOnce(ctx, time.Now().UTC())
			if err != nil {
				sweeper.logger.Error(ctx, "sweep_failed", "Expiry sweep failed", err, nil)
				continue
			}
			if expired > 0 {
				sweeper.logger.Info(ctx, "requests_expired", "Swept expired ride requests", map[string]any{
					"count": expired,
				})
			}
		}
	}
}

// SweepOnce expires every pending request past its TTL at the given instant
// and declines their pending offers. Returns how many requests it expired.
// Each request is guarded by a pending-status precondition, so a sweep
// racing an accept or cancel loses cleanly on that request and moves on.
func (sweeper *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int, error) {
	records, err := sweeper.store.Query(ctx, ports.CollectionRequests, []ports.Filter{
		ports.Eq("status", ride.RequestPending.String()),
		{Field: "expires_at", Op: ports.OpLe, Value: now},
	}, nil, 0)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, record := range records {
		requestID := record.ID()
		err := sweeper.store.AtomicBatch(ctx, []ports.BatchOp{{
			Collection: ports.CollectionRequests,
			ID:         requestID,
			Patch:      ports.Record{"status": ride.RequestExpired.String()},
			Require:    []ports.Condition{{Field: "status", Equals: ride.RequestPending.String()}},
		}})
		if err != nil {
			if errors.Is(err, ports.ErrConflict) {
				continue
			}
			return expired, err
		}
		expired++
		observability.RequestsExpired.Inc()
		sweeper.declineOffers(ctx, requestID, now)
	}
	return expired, nil
}

// declineOffers resolves the pending offers of an expired request.
func (sweeper *Sweeper) declineOffers(ctx context.Context, rideID string, now time.Time) {
	offers, err := sweeper.store.Query(ctx, ports.CollectionOffers, []ports.Filter{
		ports.Eq("ride_id", rideID),
		ports.Eq("status", ride.OfferPending.String()),
	}, nil, 0)
	if err != nil {
		sweeper.logger.Error(ctx, "offer_cleanup_query_failed", "Failed to list offers of expired request", err, map[string]any{
			"ride_id": rideID,
		})
		return
	}
	if len(offers) == 0 {
		return
	}

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
	if err := sweeper.store.AtomicBatch(ctx, ops); err != nil {
		sweeper.logger.Error(ctx, "offer_cleanup_failed", "Failed to decline offers of expired request", err, map[string]any{
			"ride_id": rideID,
		})
	}
}
