package handler

import (
	"context"
	"errors"
	"net/http"

	"ride-dispatch/internal/general/jwt"
)

type cancelBody struct {
	Reason string `json:"reason,omitempty"`
}

// ----- Handler: POST /rides/{request_id}/cancel -----

func (handler *LifecycleHTTPHandler) handleCancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	requestID := r.PathValue("request_id")
	if requestID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing request_id in path", nil)
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	var body cancelBody
	if r.ContentLength > 0 && !handler.decodeBody(ctx, w, r, &body) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	if err := handler.svc.CancelRideRequest(ctxWithTimeout, requestID, claims.Subject, body.Reason); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"request_id": requestID,
		"status":     "cancelled",
	})
}

// ----- Handler: POST /orders/{order_id}/cancel -----

func (handler *LifecycleHTTPHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
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

	var body cancelBody
	if r.ContentLength > 0 && !handler.decodeBody(ctx, w, r, &body) {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	order, err := handler.svc.CancelOrder(ctxWithTimeout, orderID, claims.Subject, body.Reason)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, order)
}
