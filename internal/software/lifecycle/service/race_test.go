// Concurrency tests for the cancel-vs-accept race (run with -race).
package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/ports"
)

func TestConcurrentCancelVsAccept(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)

	created, err := f.lifecycle.CreateRideRequest(ctx, createInput("cust-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	offers, err := f.store.Query(ctx, ports.CollectionOffers,
		[]ports.Filter{ports.Eq("ride_id", created.RequestID)}, nil, 1)
	if err != nil || len(offers) == 0 {
		t.Fatalf("offer not found: %v", err)
	}
	offerID := offers[0].ID()

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- f.lifecycle.CancelRideRequest(ctx, created.RequestID, "cust-1", "changed plans")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.dispatch.AcceptOffer(ctx, offerID, "d-1")
		errs <- err
	}()

	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ride.ErrInvalidTransition) && !errors.Is(err, ride.ErrOfferAlreadyResolved) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", success)
	}

	// the surviving state must be internally consistent either way
	request, err := f.store.Get(ctx, ports.CollectionRequests, created.RequestID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	orders, err := f.store.Query(ctx, ports.CollectionOrders,
		[]ports.Filter{ports.Eq("request_id", created.RequestID)}, nil, 0)
	if err != nil {
		t.Fatalf("query orders: %v", err)
	}
	driverRecord, _ := f.store.Get(ctx, ports.CollectionDrivers, "d-1")

	switch request["status"] {
	case "accepted":
		if len(orders) != 1 {
			t.Fatalf("accepted request without exactly 1 order: %d", len(orders))
		}
		if driverRecord["status"] != "busy" {
			t.Fatalf("accepted request with unbound driver: %v", driverRecord["status"])
		}
	case "cancelled":
		if len(orders) != 0 {
			t.Fatalf("cancelled request with %d orders", len(orders))
		}
		if driverRecord["status"] != "online" {
			t.Fatalf("cancelled request left driver %v", driverRecord["status"])
		}
	default:
		t.Fatalf("request left in non-terminal state: %v", request["status"])
	}
}

func TestConcurrentStatusUpdatesAdvanceOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	_, orderID := f.bindOrder(t, "cust-1", "d-1")

	// two racing copies of the same single-step update: exactly one commits
	const attempts = 4
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.lifecycle.UpdateRideStatus(ctx, ports.UpdateRideStatusInput{
				OrderID:  orderID,
				DriverID: "d-1",
				Status:   ride.StatusDriverArriving,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ride.ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 committed update, got %d", success)
	}

	record, _ := f.store.Get(ctx, ports.CollectionOrders, orderID)
	if record["status"] != "driver_arriving" {
		t.Fatalf("unexpected final status: %v", record["status"])
	}
	timeline, _ := record["timeline"].([]any)
	if len(timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %d", len(timeline))
	}
}
