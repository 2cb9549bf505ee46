package handler

import (
	"context"
	"errors"
	"net/http"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/general/jwt"
)

// driverFromPath resolves the driver id and verifies it against the token.
func (handler *LifecycleHTTPHandler) driverFromPath(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	driverID := r.PathValue("driver_id")
	if driverID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing driver_id in path", nil)
		return "", false
	}
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return "", false
	}
	if driverID != claims.Subject {
		handler.httpError(ctx, w, http.StatusForbidden, "driver_id does not match token subject", errors.New("driver/token mismatch"))
		return "", false
	}
	return driverID, true
}

// ----- Handler: POST /drivers/{driver_id}/status -----

func (handler *LifecycleHTTPHandler) handleDriverStatus(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.driverFromPath(ctx, w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"` // online | offline | inactive
	}
	if !handler.decodeBody(ctx, w, r, &req) {
		return
	}
	status, err := driver.ParseStatus(req.Status)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "unknown driver status", err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	if err := handler.svc.UpdateDriverStatus(ctxWithTimeout, driverID, status); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"driver_id": driverID,
		"status":    status.String(),
	})
}

// ----- Handler: POST /drivers/{driver_id}/location -----

func (handler *LifecycleHTTPHandler) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.driverFromPath(ctx, w, r)
	if !ok {
		return
	}

	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if !handler.decodeBody(ctx, w, r, &req) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	if err := handler.svc.UpdateDriverLocation(ctxWithTimeout, driverID, geo.Coordinates{Lat: req.Lat, Lng: req.Lng}); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"driver_id": driverID,
		"lat":       req.Lat,
		"lng":       req.Lng,
	})
}
