package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/ports"

	"github.com/gorilla/websocket"
)

// ConnectDriver serves GET /ws/driver/{driver_id}. After first-frame auth the
// driver receives their pending offers and bound-order transitions as pushes,
// and may send location updates, status switches, and offer responses inbound.
func (gw *Gateway) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	conn, driverID, ok := gw.authenticate(w, r, user.RoleDriver, "driver_id")
	if !ok {
		return
	}
	defer conn.Close()
	defer gw.writeLocks.Delete(conn)

	stopPing := gw.keepAlive(conn)
	defer stopPing()

	push, stopPush := gw.startPusher(conn, driverID)
	defer stopPush()

	ctx := r.Context()
	unsubOffers, err := gw.store.Subscribe(ctx, ports.CollectionOffers, []ports.Filter{
		ports.Eq("driver_id", driverID),
		ports.Eq("status", "pending"),
	}, func(_ string, record ports.Record) {
		if frame := driverOfferFrame(record); frame != nil {
			push(frame)
		}
	})
	if err != nil {
		gw.logger.Error(ctx, "ws_subscribe_failed", "Driver offer feed unavailable", err, map[string]any{"driver_id": driverID})
		gw.closeWith(conn, websocket.CloseInternalServerErr, "feed unavailable")
		return
	}
	defer unsubOffers()

	unsubOrders, err := gw.store.Subscribe(ctx, ports.CollectionOrders, []ports.Filter{
		ports.Eq("driver_id", driverID),
	}, func(_ string, record ports.Record) {
		if frame := driverOrderFrame(record); frame != nil {
			push(frame)
		}
	})
	if err != nil {
		gw.logger.Error(ctx, "ws_subscribe_failed", "Driver order feed unavailable", err, map[string]any{"driver_id": driverID})
		gw.closeWith(conn, websocket.CloseInternalServerErr, "feed unavailable")
		return
	}
	defer unsubOrders()

	gw.logger.Info(ctx, "ws_connected", "Driver WebSocket connected", map[string]any{"driver_id": driverID})

	gw.readLoop(conn, func(frame inboundFrame) {
		switch frame.Type {
		case "location_update":
			gw.handleDriverLocation(ctx, conn, driverID, frame.Data)
		case "driver_status":
			gw.handleDriverStatus(ctx, conn, driverID, frame.Data)
		case "offer_response":
			gw.handleOfferResponse(ctx, conn, driverID, frame.Data)
		default:
			gw.writeRaw(conn, `{"type":"error","error":"unknown message type"}`)
		}
	})

	gw.logger.Info(ctx, "ws_disconnected", "Driver WebSocket disconnected", map[string]any{"driver_id": driverID})
}

func (gw *Gateway) handleDriverLocation(ctx context.Context, conn *websocket.Conn, driverID string, data json.RawMessage) {
	var in struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		gw.writeRaw(conn, `{"type":"error","error":"bad location payload"}`)
		return
	}
	if err := gw.lifecycle.UpdateDriverLocation(ctx, driverID, geo.Coordinates{Lat: in.Lat, Lng: in.Lng}); err != nil {
		gw.logger.Error(ctx, "ws_location_update_failed", "Driver location update rejected", err, map[string]any{"driver_id": driverID})
		gw.writeRaw(conn, `{"type":"error","error":"location update rejected"}`)
	}
}

func (gw *Gateway) handleDriverStatus(ctx context.Context, conn *websocket.Conn, driverID string, data json.RawMessage) {
	var in struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		gw.writeRaw(conn, `{"type":"error","error":"bad status payload"}`)
		return
	}
	status, err := driver.ParseStatus(in.Status)
	if err != nil {
		gw.writeRaw(conn, `{"type":"error","error":"unknown driver status"}`)
		return
	}
	if err := gw.lifecycle.UpdateDriverStatus(ctx, driverID, status); err != nil {
		gw.logger.Error(ctx, "ws_status_update_failed", "Driver status switch rejected", err, map[string]any{"driver_id": driverID})
		gw.writeRaw(conn, `{"type":"error","error":"status switch rejected"}`)
	}
}

func (gw *Gateway) handleOfferResponse(ctx context.Context, conn *websocket.Conn, driverID string, data json.RawMessage) {
	var in struct {
		OfferID string `json:"offer_id"`
		Action  string `json:"action"` // "accept" or "decline"
		Reason  string `json:"reason,omitempty"`
	}
	if err := json.Unmarshal(data, &in); err != nil || in.OfferID == "" {
		gw.writeRaw(conn, `{"type":"error","error":"bad offer response payload"}`)
		return
	}

	switch in.Action {
	case "accept":
		result, err := gw.dispatch.AcceptOffer(ctx, in.OfferID, driverID)
		if err != nil {
			gw.logger.Info(ctx, "ws_offer_accept_lost", "Offer accept did not win", map[string]any{
				"driver_id": driverID,
				"offer_id":  in.OfferID,
				"reason":    err.Error(),
			})
			_ = gw.writeJSON(conn, map[string]any{
				"type":     "offer_response_result",
				"offer_id": in.OfferID,
				"accepted": false,
				"error":    err.Error(),
			})
			return
		}
		_ = gw.writeJSON(conn, map[string]any{
			"type":     "offer_response_result",
			"offer_id": in.OfferID,
			"accepted": true,
			"order_id": result.OrderID,
		})
	case "decline":
		if err := gw.dispatch.DeclineOffer(ctx, in.OfferID, driverID, in.Reason); err != nil {
			_ = gw.writeJSON(conn, map[string]any{
				"type":     "offer_response_result",
				"offer_id": in.OfferID,
				"accepted": false,
				"error":    err.Error(),
			})
			return
		}
		_ = gw.writeJSON(conn, map[string]any{
			"type":     "offer_response_result",
			"offer_id": in.OfferID,
			"declined": true,
		})
	default:
		gw.writeRaw(conn, `{"type":"error","error":"action must be accept or decline"}`)
	}
}
