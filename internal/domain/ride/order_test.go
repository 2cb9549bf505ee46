package ride

import (
	"testing"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
)

func testRequest(t *testing.T) *Request {
	t.Helper()
	pickup, _ := geo.NewLocation("Downtown", 31.9454, 35.9284)
	dest, _ := geo.NewLocation("Jabal Amman", 31.9539, 35.9106)
	req, err := NewRequest("req-1", "cust-1", pickup, dest, pricing.ServiceStandard, pricing.PaymentCash, "")
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

func testOrder(t *testing.T) *Order {
	t.Helper()
	order, err := NewOrder("ord-1", testRequest(t), DriverInfo{ID: "drv-1", Name: "Sami", Rating: 4.8})
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	return order
}

func TestNewOrderAssigned(t *testing.T) {
	order := testOrder(t)
	if order.Status != StatusAssigned {
		t.Fatalf("new order status = %s, want assigned", order.Status)
	}
	if len(order.Timeline) != 1 || order.Timeline[0].Status != StatusAssigned {
		t.Fatalf("new order must have a single assigned timeline entry: %+v", order.Timeline)
	}
	if order.DriverID != "drv-1" {
		t.Fatalf("driver not bound: %q", order.DriverID)
	}
	if order.Pricing != testRequest(t).Pricing {
		t.Fatal("order pricing must be copied from the request")
	}
}

func TestOrderAdvanceFullChain(t *testing.T) {
	order := testOrder(t)
	chain := []Status{StatusDriverArriving, StatusDriverArrived, StatusPickedUp, StatusInProgress, StatusCompleted}

	for _, next := range chain {
		if err := order.Advance(next, "", nil); err != nil {
			t.Fatalf("advance to %s: %v", next, err)
		}
	}
	if order.CompletedAt == nil {
		t.Fatal("completed_at must be stamped on completion")
	}
	if len(order.Timeline) != len(chain)+1 {
		t.Fatalf("timeline length = %d, want %d", len(order.Timeline), len(chain)+1)
	}
	for i := 1; i < len(order.Timeline); i++ {
		if order.Timeline[i].Timestamp.Before(order.Timeline[i-1].Timestamp) {
			t.Fatal("timeline timestamps must be non-decreasing")
		}
	}
}

func TestOrderAdvanceSkipRejected(t *testing.T) {
	order := testOrder(t)
	before := len(order.Timeline)

	if err := order.Advance(StatusPickedUp, "", nil); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if order.Status != StatusAssigned || len(order.Timeline) != before {
		t.Fatal("failed advance must leave order and timeline unchanged")
	}
}

func TestOrderAdvanceAfterTerminal(t *testing.T) {
	order := testOrder(t)
	if err := order.Advance(StatusCancelled, "rider cancelled", nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := order.Advance(StatusDriverArriving, "", nil); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition after terminal, got %v", err)
	}
}

func TestRequestExpiry(t *testing.T) {
	req := testRequest(t)
	now := time.Now().UTC()

	if req.Expired(now) {
		t.Fatal("fresh request must not be expired")
	}
	if got := req.EffectiveStatus(now.Add(RequestTTL + time.Second)); got != RequestExpired {
		t.Fatalf("effective status past TTL = %s, want expired", got)
	}
	if req.Acceptable(now.Add(RequestTTL + time.Second)) {
		t.Fatal("expired request must not be acceptable")
	}

	req.Status = RequestCancelled
	if got := req.EffectiveStatus(now.Add(RequestTTL + time.Second)); got != RequestCancelled {
		t.Fatalf("terminal status must not be overridden by expiry, got %s", got)
	}
}
