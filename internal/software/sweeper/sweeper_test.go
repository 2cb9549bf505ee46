package sweeper

import (
	"context"
	"testing"
	"time"

	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/memstore"
	"ride-dispatch/internal/ports"
)

func seedRequest(t *testing.T, store *memstore.Store, id, status string, expiresAt time.Time) {
	t.Helper()
	_, err := store.Create(context.Background(), ports.CollectionRequests, ports.Record{
		"id":         id,
		"status":     status,
		"expires_at": expiresAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		t.Fatalf("seed request %s: %v", id, err)
	}
}

func seedOffer(t *testing.T, store *memstore.Store, id, rideID, status string) {
	t.Helper()
	_, err := store.Create(context.Background(), ports.CollectionOffers, ports.Record{
		"id":      id,
		"ride_id": rideID,
		"status":  status,
	})
	if err != nil {
		t.Fatalf("seed offer %s: %v", id, err)
	}
}

func TestSweepOnceExpiresLapsedRequests(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sweeper := New(logger.New("sweeper-test"), store, 0)

	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	seedRequest(t, store, "req-lapsed", "pending", now.Add(-time.Minute))
	seedRequest(t, store, "req-fresh", "pending", now.Add(5*time.Minute))
	seedRequest(t, store, "req-accepted", "accepted", now.Add(-time.Hour))
	seedOffer(t, store, "off-1", "req-lapsed", "pending")
	seedOffer(t, store, "off-2", "req-lapsed", "declined")
	seedOffer(t, store, "off-3", "req-fresh", "pending")

	expired, err := sweeper.SweepOnce(ctx, now)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired request, got %d", expired)
	}

	lapsed, _ := store.Get(ctx, ports.CollectionRequests, "req-lapsed")
	if lapsed["status"] != "expired" {
		t.Fatalf("lapsed request: %v", lapsed["status"])
	}
	fresh, _ := store.Get(ctx, ports.CollectionRequests, "req-fresh")
	if fresh["status"] != "pending" {
		t.Fatalf("fresh request touched: %v", fresh["status"])
	}
	accepted, _ := store.Get(ctx, ports.CollectionRequests, "req-accepted")
	if accepted["status"] != "accepted" {
		t.Fatalf("accepted request touched: %v", accepted["status"])
	}

	offer, _ := store.Get(ctx, ports.CollectionOffers, "off-1")
	if offer["status"] != "declined" {
		t.Fatalf("dangling offer not declined: %v", offer["status"])
	}
	untouched, _ := store.Get(ctx, ports.CollectionOffers, "off-3")
	if untouched["status"] != "pending" {
		t.Fatalf("fresh request's offer touched: %v", untouched["status"])
	}
}

func TestSweepOnceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	sweeper := New(logger.New("sweeper-test"), store, 0)

	now := time.Date(2026, 3, 18, 12, 0, 0, 0, time.UTC)
	seedRequest(t, store, "req-1", "pending", now.Add(-time.Minute))

	if _, err := sweeper.SweepOnce(ctx, now); err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	expired, err := sweeper.SweepOnce(ctx, now)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if expired != 0 {
		t.Fatalf("second sweep expired %d requests", expired)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	store := memstore.New()
	sweeper := New(logger.New("sweeper-test"), store, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop on context cancel")
	}
}
