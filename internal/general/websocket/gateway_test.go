package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/memstore"
	"ride-dispatch/internal/ports"
	dispatch "ride-dispatch/internal/software/dispatch/service"
	lifecycle "ride-dispatch/internal/software/lifecycle/service"
)

type nopNotifier struct{}

func (nopNotifier) OfferCreated(context.Context, *ride.Offer) {}
func (nopNotifier) OfferAccepted(context.Context, *ride.Order) {}
func (nopNotifier) RideStatusChanged(context.Context, *ride.Order, ride.Status) {}
func (nopNotifier) RideCompleted(context.Context, *ride.Order) {}
func (nopNotifier) RideCancelled(context.Context, *ride.Order, string) {}

type wsFixture struct {
	store  *memstore.Store
	jwtMgr *jwt.Manager
	server *httptest.Server
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	log := logger.New("gateway-test")
	store := memstore.New()
	t.Cleanup(store.Close)

	notifier := nopNotifier{}
	dispatchSvc := dispatch.NewDispatchService(log, store, notifier, nil, 0, 0)
	lifecycleSvc := lifecycle.NewLifecycleService(log, store, dispatchSvc, notifier, nil)

	jwtMgr := jwt.NewManager("gateway-test-secret", time.Hour)
	gateway := NewGateway(log, jwtMgr, store, lifecycleSvc, dispatchSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/driver/{driver_id}", gateway.ConnectDriver)
	mux.HandleFunc("GET /ws/rider/{customer_id}", gateway.ConnectRider)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &wsFixture{store: store, jwtMgr: jwtMgr, server: server}
}

// dial connects, authenticates, and consumes the auth_success frame.
func (f *wsFixture) dial(t *testing.T, path, subject string, role user.Role) *websocket.Conn {
	t.Helper()
	url := strings.Replace(f.server.URL, "http://", "ws://", 1) + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })

	token, _, err := f.jwtMgr.IssueUserToken(subject, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	auth := fmt.Sprintf(`{"type":"auth","token":"Bearer %s"}`, token)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(auth)); err != nil {
		t.Fatalf("send auth frame: %v", err)
	}

	reply := f.readFrame(t, conn)
	if reply["type"] != "auth_success" {
		t.Fatalf("first frame = %v, want auth_success", reply)
	}
	return conn
}

func (f *wsFixture) readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(payload, &frame); err != nil {
		t.Fatalf("decode frame %q: %v", payload, err)
	}
	return frame
}

// waitForFrame reads until a frame of the wanted type arrives.
func (f *wsFixture) waitForFrame(t *testing.T, conn *websocket.Conn, wantType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		frame := f.readFrame(t, conn)
		if frame["type"] == wantType {
			return frame
		}
	}
	t.Fatalf("no %q frame arrived", wantType)
	return nil
}

func (f *wsFixture) seedRequest(t *testing.T, requestID, customerID string) *ride.Request {
	t.Helper()
	pickup := geo.Location{Address: "Rainbow St 12", Coordinates: geo.Coordinates{Lat: 31.9454, Lng: 35.9284}}
	destination := geo.Location{Address: "Abdali Blvd 5", Coordinates: geo.Coordinates{Lat: 31.9539, Lng: 35.9106}}
	request, err := ride.NewRequest(requestID, customerID, pickup, destination, pricing.ServiceStandard, pricing.PaymentCard, "")
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	record, err := ports.EncodeRecord(request)
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	if _, err := f.store.Create(context.Background(), ports.CollectionRequests, record); err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return request
}

func (f *wsFixture) seedOffer(t *testing.T, offerID, driverID string, request *ride.Request) {
	t.Helper()
	offer := ride.NewOffer(offerID, driverID, request)
	record, err := ports.EncodeRecord(offer)
	if err != nil {
		t.Fatalf("encode offer: %v", err)
	}
	if _, err := f.store.Create(context.Background(), ports.CollectionOffers, record); err != nil {
		t.Fatalf("seed offer: %v", err)
	}
}

func TestDriverFeedPushesPendingOffers(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/driver/d-1", "d-1", user.RoleDriver)

	request := f.seedRequest(t, "ride-1", "cust-1")
	f.seedOffer(t, "offer-1", "d-1", request)

	frame := f.waitForFrame(t, conn, "ride_offer")
	if frame["offer_id"] != "offer-1" {
		t.Fatalf("offer_id = %v, want offer-1", frame["offer_id"])
	}
	if frame["ride_id"] != "ride-1" {
		t.Fatalf("ride_id = %v, want ride-1", frame["ride_id"])
	}
}

func TestDriverFeedIgnoresForeignOffers(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/driver/d-1", "d-1", user.RoleDriver)

	request := f.seedRequest(t, "ride-1", "cust-1")
	f.seedOffer(t, "offer-other", "d-2", request)
	f.seedOffer(t, "offer-mine", "d-1", request)

	// the first pushed offer must already be the driver's own
	frame := f.waitForFrame(t, conn, "ride_offer")
	if frame["offer_id"] != "offer-mine" {
		t.Fatalf("offer_id = %v, want offer-mine", frame["offer_id"])
	}
}

func TestDriverDeclineOverSocket(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/driver/d-1", "d-1", user.RoleDriver)

	request := f.seedRequest(t, "ride-1", "cust-1")
	f.seedOffer(t, "offer-1", "d-1", request)
	f.waitForFrame(t, conn, "ride_offer")

	decline := `{"type":"offer_response","data":{"offer_id":"offer-1","action":"decline","reason":"too far"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(decline)); err != nil {
		t.Fatalf("send decline: %v", err)
	}

	frame := f.waitForFrame(t, conn, "offer_response_result")
	if frame["declined"] != true {
		t.Fatalf("declined = %v, want true", frame["declined"])
	}

	record, err := f.store.Get(context.Background(), ports.CollectionOffers, "offer-1")
	if err != nil {
		t.Fatalf("load offer: %v", err)
	}
	if record["status"] != "declined" {
		t.Fatalf("offer status = %v, want declined", record["status"])
	}
}

func TestRiderFeedPushesRequestTransitions(t *testing.T) {
	f := newWSFixture(t)
	conn := f.dial(t, "/ws/rider/cust-1", "cust-1", user.RoleRider)

	f.seedRequest(t, "ride-1", "cust-1")
	frame := f.waitForFrame(t, conn, "ride_request_update")
	if frame["request_id"] != "ride-1" {
		t.Fatalf("request_id = %v, want ride-1", frame["request_id"])
	}
	if frame["status"] != "pending" {
		t.Fatalf("status = %v, want pending", frame["status"])
	}

	cancel := `{"type":"ride_cancel","data":{"request_id":"ride-1","reason":"changed my mind"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cancel)); err != nil {
		t.Fatalf("send cancel: %v", err)
	}

	// both the push and the direct result arrive; order is not guaranteed
	sawResult, sawUpdate := false, false
	for !sawResult || !sawUpdate {
		frame := f.readFrame(t, conn)
		switch frame["type"] {
		case "ride_cancel_result":
			if frame["cancelled"] != true {
				t.Fatalf("cancelled = %v, want true", frame["cancelled"])
			}
			sawResult = true
		case "ride_request_update":
			if frame["status"] == "cancelled" {
				sawUpdate = true
			}
		}
	}
}

func TestRiderCannotCancelForeignRequest(t *testing.T) {
	f := newWSFixture(t)
	f.seedRequest(t, "ride-1", "cust-1")

	conn := f.dial(t, "/ws/rider/cust-2", "cust-2", user.RoleRider)

	cancel := `{"type":"ride_cancel","data":{"request_id":"ride-1","reason":"not mine"}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cancel)); err != nil {
		t.Fatalf("send cancel: %v", err)
	}

	frame := f.waitForFrame(t, conn, "ride_cancel_result")
	if frame["cancelled"] != false {
		t.Fatalf("cancelled = %v, want false", frame["cancelled"])
	}

	record, err := f.store.Get(context.Background(), ports.CollectionRequests, "ride-1")
	if err != nil {
		t.Fatalf("load request: %v", err)
	}
	if record["status"] != "pending" {
		t.Fatalf("request status = %v, want pending", record["status"])
	}
}

func TestRejectsTokenForWrongSubject(t *testing.T) {
	f := newWSFixture(t)
	url := strings.Replace(f.server.URL, "http://", "ws://", 1) + "/ws/driver/d-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	token, _, err := f.jwtMgr.IssueUserToken("d-2", user.RoleDriver)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	auth := fmt.Sprintf(`{"type":"auth","token":"Bearer %s"}`, token)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(auth)); err != nil {
		t.Fatalf("send auth frame: %v", err)
	}

	reply := f.readFrame(t, conn)
	if reply["type"] != "auth_error" {
		t.Fatalf("reply type = %v, want auth_error", reply["type"])
	}
}
