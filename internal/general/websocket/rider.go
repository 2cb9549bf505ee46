package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/ports"

	"github.com/gorilla/websocket"
)

// ConnectRider serves GET /ws/rider/{customer_id}. The rider receives their
// request and order transitions as pushes and may cancel a pending request
// inbound.
func (gw *Gateway) ConnectRider(w http.ResponseWriter, r *http.Request) {
	conn, customerID, ok := gw.authenticate(w, r, user.RoleRider, "customer_id")
	if !ok {
		return
	}
	defer conn.Close()
	defer gw.writeLocks.Delete(conn)

	stopPing := gw.keepAlive(conn)
	defer stopPing()

	push, stopPush := gw.startPusher(conn, customerID)
	defer stopPush()

	ctx := r.Context()
	unsubRequests, err := gw.store.Subscribe(ctx, ports.CollectionRequests, []ports.Filter{
		ports.Eq("customer_id", customerID),
	}, func(_ string, record ports.Record) {
		if frame := riderRequestFrame(record); frame != nil {
			push(frame)
		}
	})
	if err != nil {
		gw.logger.Error(ctx, "ws_subscribe_failed", "Rider request feed unavailable", err, map[string]any{"customer_id": customerID})
		gw.closeWith(conn, websocket.CloseInternalServerErr, "feed unavailable")
		return
	}
	defer unsubRequests()

	unsubOrders, err := gw.store.Subscribe(ctx, ports.CollectionOrders, []ports.Filter{
		ports.Eq("customer_id", customerID),
	}, func(_ string, record ports.Record) {
		if frame := riderOrderFrame(record); frame != nil {
			push(frame)
		}
	})
	if err != nil {
		gw.logger.Error(ctx, "ws_subscribe_failed", "Rider order feed unavailable", err, map[string]any{"customer_id": customerID})
		gw.closeWith(conn, websocket.CloseInternalServerErr, "feed unavailable")
		return
	}
	defer unsubOrders()

	gw.logger.Info(ctx, "ws_connected", "Rider WebSocket connected", map[string]any{"customer_id": customerID})

	gw.readLoop(conn, func(frame inboundFrame) {
		switch frame.Type {
		case "ride_cancel":
			gw.handleRideCancel(ctx, conn, customerID, frame.Data)
		default:
			gw.writeRaw(conn, `{"type":"error","error":"unknown message type"}`)
		}
	})

	gw.logger.Info(ctx, "ws_disconnected", "Rider WebSocket disconnected", map[string]any{"customer_id": customerID})
}

func (gw *Gateway) handleRideCancel(ctx context.Context, conn *websocket.Conn, customerID string, data json.RawMessage) {
	var in struct {
		RequestID string `json:"request_id"`
		Reason    string `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(data, &in); err != nil || in.RequestID == "" {
		gw.writeRaw(conn, `{"type":"error","error":"bad cancel payload"}`)
		return
	}
	if err := gw.lifecycle.CancelRideRequest(ctx, in.RequestID, customerID, in.Reason); err != nil {
		gw.logger.Error(ctx, "ws_ride_cancel_failed", "Ride cancel rejected", err, map[string]any{
			"customer_id": customerID,
			"request_id":  in.RequestID,
		})
		_ = gw.writeJSON(conn, map[string]any{
			"type":       "ride_cancel_result",
			"request_id": in.RequestID,
			"cancelled":  false,
			"error":      err.Error(),
		})
		return
	}
	_ = gw.writeJSON(conn, map[string]any{
		"type":       "ride_cancel_result",
		"request_id": in.RequestID,
		"cancelled":  true,
	})
}
