package handler

import (
	"context"
	"errors"
	"net/http"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

type orderStatusRequest struct {
	Status string   `json:"status"` // next status on the chain
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
	Notes  string   `json:"notes,omitempty"`
}

// ----- Handler: POST /orders/{order_id}/status -----

func (handler *LifecycleHTTPHandler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	orderID := r.PathValue("order_id")
	if orderID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing order_id in path", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var req orderStatusRequest
	if !handler.decodeBody(ctx, w, r, &req) {
		return
	}

	status, err := ride.ParseStatus(req.Status)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "unknown order status", err)
		return
	}

	in := ports.UpdateRideStatusInput{
		OrderID:  orderID,
		DriverID: claims.Subject,
		Status:   status,
		Notes:    req.Notes,
	}
	if req.Lat != nil && req.Lng != nil {
		in.Location = &geo.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	order, err := handler.svc.UpdateRideStatus(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, order)
}
