package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type createRideRequest struct {
	CustomerID           string  `json:"customer_id"`
	PickupLatitude       float64 `json:"pickup_latitude"`
	PickupLongitude      float64 `json:"pickup_longitude"`
	PickupAddress        string  `json:"pickup_address"`
	DestinationLatitude  float64 `json:"destination_latitude"`
	DestinationLongitude float64 `json:"destination_longitude"`
	DestinationAddress   string  `json:"destination_address"`
	ServiceType          string  `json:"service_type"` // economy | standard | premium
	PaymentMethod        string  `json:"payment_method"`
	Notes                string  `json:"notes,omitempty"`
}

// ----- Handler: POST /rides -----

func (handler *LifecycleHTTPHandler) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req createRideRequest
	if !handler.decodeBody(ctx, w, r, &req) {
		return
	}

	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	// fill or verify customer_id against the token subject
	sub := strings.TrimSpace(claims.Subject)
	if strings.TrimSpace(req.CustomerID) == "" {
		req.CustomerID = sub
	} else if req.CustomerID != sub {
		handler.httpError(ctx, w, http.StatusForbidden, "customer_id does not match token subject", errors.New("customer/token mismatch"))
		return
	}

	serviceType, err := pricing.ParseServiceType(req.ServiceType)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "service_type must be one of: economy, standard, premium", err)
		return
	}
	paymentMethod, err := pricing.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "payment_method must be one of: cash, card, wallet", err)
		return
	}

	in := ports.CreateRideRequestInput{
		CustomerID: req.CustomerID,
		Pickup: geo.Location{
			Address:     strings.TrimSpace(req.PickupAddress),
			Coordinates: geo.Coordinates{Lat: req.PickupLatitude, Lng: req.PickupLongitude},
		},
		Destination: geo.Location{
			Address:     strings.TrimSpace(req.DestinationAddress),
			Coordinates: geo.Coordinates{Lat: req.DestinationLatitude, Lng: req.DestinationLongitude},
		},
		ServiceType:   serviceType,
		PaymentMethod: paymentMethod,
		Notes:         strings.TrimSpace(req.Notes),
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	res, err := handler.svc.CreateRideRequest(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	ctxWithTimeout = handler.logger.WithRideID(ctxWithTimeout, res.RequestID)
	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, res)
}
