package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ride-dispatch/internal/domain/customer"
	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/memstore"
	"ride-dispatch/internal/ports"
	dispatch "ride-dispatch/internal/software/dispatch/service"
)

// recordingNotifier counts notification calls for assertions.
type recordingNotifier struct {
	mu             sync.Mutex
	offersCreated  int
	offersAccepted int
	statusChanges  int
	completed      int
	cancelled      int
}

func (n *recordingNotifier) OfferCreated(context.Context, *ride.Offer) {
	n.mu.Lock()
	n.offersCreated++
	n.mu.Unlock()
}

func (n *recordingNotifier) OfferAccepted(context.Context, *ride.Order) {
	n.mu.Lock()
	n.offersAccepted++
	n.mu.Unlock()
}

func (n *recordingNotifier) RideStatusChanged(context.Context, *ride.Order, ride.Status) {
	n.mu.Lock()
	n.statusChanges++
	n.mu.Unlock()
}

func (n *recordingNotifier) RideCompleted(context.Context, *ride.Order) {
	n.mu.Lock()
	n.completed++
	n.mu.Unlock()
}

func (n *recordingNotifier) RideCancelled(context.Context, *ride.Order, string) {
	n.mu.Lock()
	n.cancelled++
	n.mu.Unlock()
}

// recordingSelector tracks candidate index mutations.
type recordingSelector struct {
	mu       sync.Mutex
	indexed  map[string]geo.Coordinates
	removals int
}

func newRecordingSelector() *recordingSelector {
	return &recordingSelector{indexed: make(map[string]geo.Coordinates)}
}

func (s *recordingSelector) UpsertCandidate(_ context.Context, driverID string, at geo.Coordinates) error {
	s.mu.Lock()
	s.indexed[driverID] = at
	s.mu.Unlock()
	return nil
}

func (s *recordingSelector) RemoveCandidate(_ context.Context, driverID string) error {
	s.mu.Lock()
	delete(s.indexed, driverID)
	s.removals++
	s.mu.Unlock()
	return nil
}

func (s *recordingSelector) Nearby(context.Context, geo.Coordinates, float64, int) ([]string, error) {
	return nil, errors.New("index unavailable")
}

type fixture struct {
	store     *memstore.Store
	lifecycle ports.LifecycleService
	dispatch  ports.DispatchService
	notifier  *recordingNotifier
	selector  *recordingSelector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	log := logger.New("lifecycle-test")
	notifier := &recordingNotifier{}
	selector := newRecordingSelector()
	dispatchSvc := dispatch.NewDispatchService(log, store, notifier, nil, 0, 0)
	lifecycleSvc := NewLifecycleService(log, store, dispatchSvc, notifier, selector)
	return &fixture{
		store:     store,
		lifecycle: lifecycleSvc,
		dispatch:  dispatchSvc,
		notifier:  notifier,
		selector:  selector,
	}
}

func (f *fixture) seedCustomer(t *testing.T, id string) {
	t.Helper()
	profile, err := customer.NewCustomer(id, "Customer "+id, "+962790000001")
	if err != nil {
		t.Fatalf("build customer: %v", err)
	}
	record, err := ports.EncodeRecord(profile)
	if err != nil {
		t.Fatalf("encode customer: %v", err)
	}
	if _, err := f.store.Create(context.Background(), ports.CollectionCustomers, record); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
}

func (f *fixture) seedDriver(t *testing.T, id string, available bool) {
	t.Helper()
	status := "online"
	if !available {
		status = "offline"
	}
	_, err := f.store.Create(context.Background(), ports.CollectionDrivers, ports.Record{
		"id":           id,
		"name":         "Driver " + id,
		"rating":       4.7,
		"total_rides":  3,
		"status":       status,
		"is_online":    available,
		"is_available": available,
		"vehicle":      map[string]any{"make": "Toyota", "model": "Corolla", "plate": "22-1234"},
		"location":     map[string]any{"lat": 31.95, "lng": 35.92},
	})
	if err != nil {
		t.Fatalf("seed driver: %v", err)
	}
}

func createInput(customerID string) ports.CreateRideRequestInput {
	pickup, _ := geo.NewLocation("7th Circle, Amman", 31.9454, 35.9284)
	destination, _ := geo.NewLocation("Abdali Boulevard, Amman", 31.9539, 35.9106)
	return ports.CreateRideRequestInput{
		CustomerID:    customerID,
		Pickup:        pickup,
		Destination:   destination,
		ServiceType:   pricing.ServiceStandard,
		PaymentMethod: pricing.PaymentCard,
	}
}

// bindOrder walks a fresh request all the way to an assigned order.
func (f *fixture) bindOrder(t *testing.T, customerID, driverID string) (string, string) {
	t.Helper()
	ctx := context.Background()

	created, err := f.lifecycle.CreateRideRequest(ctx, createInput(customerID))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	offers, err := f.store.Query(ctx, ports.CollectionOffers, []ports.Filter{
		ports.Eq("ride_id", created.RequestID),
		ports.Eq("driver_id", driverID),
	}, nil, 1)
	if err != nil || len(offers) == 0 {
		t.Fatalf("offer for %s not found: %v", driverID, err)
	}
	result, err := f.dispatch.AcceptOffer(ctx, offers[0].ID(), driverID)
	if err != nil {
		t.Fatalf("accept offer: %v", err)
	}
	return created.RequestID, result.OrderID
}

func TestCreateRideRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	f.seedDriver(t, "d-2", true)

	result, err := f.lifecycle.CreateRideRequest(ctx, createInput("cust-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Status != "pending" {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if result.OffersSent != 2 {
		t.Fatalf("expected 2 offers, got %d", result.OffersSent)
	}

	// pricing must be frozen to the standard-tier formula
	pickup, _ := geo.NewLocation("7th Circle, Amman", 31.9454, 35.9284)
	destination, _ := geo.NewLocation("Abdali Boulevard, Amman", 31.9539, 35.9106)
	want := pricing.PriceFor(geo.DistanceKM(pickup.Coordinates, destination.Coordinates), pricing.ServiceStandard)
	if result.Pricing.Total != want.Total {
		t.Fatalf("expected total %.2f, got %.2f", want.Total, result.Pricing.Total)
	}

	record, err := f.store.Get(ctx, ports.CollectionRequests, result.RequestID)
	if err != nil {
		t.Fatalf("request not persisted: %v", err)
	}
	if record["status"] != "pending" {
		t.Fatalf("persisted status: %v", record["status"])
	}
	if f.notifier.offersCreated != 2 {
		t.Fatalf("expected 2 offer notifications, got %d", f.notifier.offersCreated)
	}
}

func TestCreateRideRequestUnknownCustomer(t *testing.T) {
	f := newFixture(t)
	_, err := f.lifecycle.CreateRideRequest(context.Background(), createInput("ghost"))
	if !errors.Is(err, ride.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCreateRideRequestNoDrivers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")

	result, err := f.lifecycle.CreateRideRequest(ctx, createInput("cust-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.OffersSent != 0 {
		t.Fatalf("expected 0 offers, got %d", result.OffersSent)
	}
	if _, err := f.store.Get(ctx, ports.CollectionRequests, result.RequestID); err != nil {
		t.Fatalf("request must persist with zero offers: %v", err)
	}
}

func TestCancelRideRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)

	created, err := f.lifecycle.CreateRideRequest(ctx, createInput("cust-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.lifecycle.CancelRideRequest(ctx, created.RequestID, "cust-1", "changed plans"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	record, _ := f.store.Get(ctx, ports.CollectionRequests, created.RequestID)
	if record["status"] != "cancelled" {
		t.Fatalf("expected cancelled, got %v", record["status"])
	}

	offers, _ := f.store.Query(ctx, ports.CollectionOffers,
		[]ports.Filter{ports.Eq("ride_id", created.RequestID)}, nil, 0)
	for _, offer := range offers {
		if offer["status"] != "declined" {
			t.Fatalf("dangling offer after cancel: %v", offer["status"])
		}
	}

	// a second cancel must fail, the request is terminal
	if err := f.lifecycle.CancelRideRequest(ctx, created.RequestID, "cust-1", "again"); !errors.Is(err, ride.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelRideRequestWrongCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)

	created, err := f.lifecycle.CreateRideRequest(ctx, createInput("cust-1"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.lifecycle.CancelRideRequest(ctx, created.RequestID, "cust-2", "not mine"); !errors.Is(err, ride.ErrCustomerMismatch) {
		t.Fatalf("expected ErrCustomerMismatch, got %v", err)
	}

	record, _ := f.store.Get(ctx, ports.CollectionRequests, created.RequestID)
	if record["status"] != "pending" {
		t.Fatalf("foreign cancel mutated the request: %v", record["status"])
	}
}

func TestCancelOrderReleasesDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	_, orderID := f.bindOrder(t, "cust-1", "d-1")

	order, err := f.lifecycle.CancelOrder(ctx, orderID, "cust-1", "waited too long")
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if order.Status != ride.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}
	if len(order.Timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %d", len(order.Timeline))
	}

	driverRecord, _ := f.store.Get(ctx, ports.CollectionDrivers, "d-1")
	if driverRecord["status"] != "online" || driverRecord["is_available"] != true {
		t.Fatalf("driver not released: %v", driverRecord)
	}
	if f.notifier.cancelled != 1 {
		t.Fatalf("expected 1 cancellation notification, got %d", f.notifier.cancelled)
	}

	// terminal orders cannot be cancelled again
	if _, err := f.lifecycle.CancelOrder(ctx, orderID, "cust-1", "again"); !errors.Is(err, ride.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCancelOrderWrongCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	_, orderID := f.bindOrder(t, "cust-1", "d-1")

	if _, err := f.lifecycle.CancelOrder(ctx, orderID, "cust-2", "not mine"); !errors.Is(err, ride.ErrCustomerMismatch) {
		t.Fatalf("expected ErrCustomerMismatch, got %v", err)
	}

	record, _ := f.store.Get(ctx, ports.CollectionOrders, orderID)
	if record["status"] != "assigned" {
		t.Fatalf("foreign cancel mutated the order: %v", record["status"])
	}
}

func TestUpdateRideStatusFullChain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	_, orderID := f.bindOrder(t, "cust-1", "d-1")

	chain := []ride.Status{
		ride.StatusDriverArriving,
		ride.StatusDriverArrived,
		ride.StatusPickedUp,
		ride.StatusInProgress,
		ride.StatusCompleted,
	}
	var last *ride.Order
	for _, next := range chain {
		order, err := f.lifecycle.UpdateRideStatus(ctx, ports.UpdateRideStatusInput{
			OrderID:  orderID,
			DriverID: "d-1",
			Status:   next,
		})
		if err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
		last = order
	}

	if last.CompletedAt == nil {
		t.Fatalf("completed order missing completion stamp")
	}
	if len(last.Timeline) != 6 {
		t.Fatalf("expected 6 timeline entries, got %d", len(last.Timeline))
	}

	// completion releases the driver and bumps the ride counter
	driverRecord, _ := f.store.Get(ctx, ports.CollectionDrivers, "d-1")
	if driverRecord["status"] != "online" || driverRecord["is_available"] != true {
		t.Fatalf("driver not released: %v", driverRecord)
	}
	if rides, _ := driverRecord["total_rides"].(float64); rides != 4 {
		t.Fatalf("expected total_rides 4, got %v", driverRecord["total_rides"])
	}
	if f.notifier.completed != 1 {
		t.Fatalf("expected 1 completion notification, got %d", f.notifier.completed)
	}
	if f.notifier.statusChanges != len(chain) {
		t.Fatalf("expected %d status notifications, got %d", len(chain), f.notifier.statusChanges)
	}
}

func TestUpdateRideStatusCancelledReleasesDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	_, orderID := f.bindOrder(t, "cust-1", "d-1")

	order, err := f.lifecycle.UpdateRideStatus(ctx, ports.UpdateRideStatusInput{
		OrderID:  orderID,
		DriverID: "d-1",
		Status:   ride.StatusCancelled,
		Notes:    "rider unreachable",
	})
	if err != nil {
		t.Fatalf("driver cancel: %v", err)
	}
	if order.Status != ride.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", order.Status)
	}

	// a driver-side cancel must free the driver just like completion does,
	// but without crediting a ride
	driverRecord, _ := f.store.Get(ctx, ports.CollectionDrivers, "d-1")
	if driverRecord["status"] != "online" || driverRecord["is_available"] != true {
		t.Fatalf("driver not released: %v", driverRecord)
	}
	if rides, _ := driverRecord["total_rides"].(float64); rides != 3 {
		t.Fatalf("cancel must not bump total_rides, got %v", driverRecord["total_rides"])
	}

	if f.notifier.cancelled != 1 {
		t.Fatalf("expected 1 cancellation notification, got %d", f.notifier.cancelled)
	}

	// the freed driver can go back online-adjacent states at will again
	if err := f.lifecycle.UpdateDriverStatus(ctx, "d-1", driver.StatusOffline); err != nil {
		t.Fatalf("released driver still locked: %v", err)
	}
}

func TestUpdateRideStatusRejectsSkip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	_, orderID := f.bindOrder(t, "cust-1", "d-1")

	_, err := f.lifecycle.UpdateRideStatus(ctx, ports.UpdateRideStatusInput{
		OrderID:  orderID,
		DriverID: "d-1",
		Status:   ride.StatusPickedUp,
	})
	if !errors.Is(err, ride.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	record, _ := f.store.Get(ctx, ports.CollectionOrders, orderID)
	if record["status"] != "assigned" {
		t.Fatalf("failed transition mutated the order: %v", record["status"])
	}
}

func TestUpdateRideStatusWrongDriver(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	f.seedDriver(t, "d-2", true)
	_, orderID := f.bindOrder(t, "cust-1", "d-1")

	_, err := f.lifecycle.UpdateRideStatus(ctx, ports.UpdateRideStatusInput{
		OrderID:  orderID,
		DriverID: "d-2",
		Status:   ride.StatusDriverArriving,
	})
	if !errors.Is(err, ride.ErrDriverMismatch) {
		t.Fatalf("expected ErrDriverMismatch, got %v", err)
	}
}

func TestGetRideEstimates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedDriver(t, "d-1", true)

	pickup, _ := geo.NewLocation("7th Circle, Amman", 31.9454, 35.9284)
	destination, _ := geo.NewLocation("Abdali Boulevard, Amman", 31.9539, 35.9106)

	estimates, err := f.lifecycle.GetRideEstimates(ctx, pickup, destination)
	if err != nil {
		t.Fatalf("estimates: %v", err)
	}
	if len(estimates) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(estimates))
	}

	distance := geo.DistanceKM(pickup.Coordinates, destination.Coordinates)
	for _, estimate := range estimates {
		want := pricing.PriceFor(distance, estimate.ServiceType)
		if estimate.Pricing.Total != want.Total {
			t.Fatalf("%s: expected %.2f, got %.2f", estimate.ServiceType, want.Total, estimate.Pricing.Total)
		}
		if !estimate.Available || estimate.EstimatedWaitMin == 0 {
			t.Fatalf("%s: expected availability with supply online", estimate.ServiceType)
		}
	}

	// premium must quote strictly above economy for the same trip
	if estimates[2].Pricing.Total <= estimates[0].Pricing.Total {
		t.Fatalf("tier ordering violated: %.2f <= %.2f", estimates[2].Pricing.Total, estimates[0].Pricing.Total)
	}
}

func TestUpdateDriverStatusSyncsIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedDriver(t, "d-1", false)

	if err := f.lifecycle.UpdateDriverStatus(ctx, "d-1", driver.StatusOnline); err != nil {
		t.Fatalf("go online: %v", err)
	}
	if _, ok := f.selector.indexed["d-1"]; !ok {
		t.Fatalf("online driver not indexed")
	}

	if err := f.lifecycle.UpdateDriverStatus(ctx, "d-1", driver.StatusOffline); err != nil {
		t.Fatalf("go offline: %v", err)
	}
	if _, ok := f.selector.indexed["d-1"]; ok {
		t.Fatalf("offline driver still indexed")
	}
}

func TestBusyDriverCannotSelfServeOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedCustomer(t, "cust-1")
	f.seedDriver(t, "d-1", true)
	f.bindOrder(t, "cust-1", "d-1")

	err := f.lifecycle.UpdateDriverStatus(ctx, "d-1", driver.StatusOnline)
	if !errors.Is(err, driver.ErrInvalidStatusSwitch) {
		t.Fatalf("expected ErrInvalidStatusSwitch, got %v", err)
	}
}

func TestUpdateDriverLocation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedDriver(t, "d-1", true)

	at := geo.Coordinates{Lat: 31.96, Lng: 35.93}
	if err := f.lifecycle.UpdateDriverLocation(ctx, "d-1", at); err != nil {
		t.Fatalf("update location: %v", err)
	}

	record, _ := f.store.Get(ctx, ports.CollectionDrivers, "d-1")
	location, _ := record["location"].(map[string]any)
	if location["lat"] != 31.96 {
		t.Fatalf("location not persisted: %v", record["location"])
	}
	if indexed, ok := f.selector.indexed["d-1"]; !ok || indexed.Lat != 31.96 {
		t.Fatalf("index not refreshed: %v", f.selector.indexed)
	}

	if err := f.lifecycle.UpdateDriverLocation(ctx, "d-1", geo.Coordinates{Lat: 200, Lng: 0}); err == nil {
		t.Fatalf("expected validation error for out-of-range latitude")
	}
}
