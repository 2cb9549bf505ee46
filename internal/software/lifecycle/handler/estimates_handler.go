package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"ride-dispatch/internal/domain/geo"
)

// ----- Handler: GET /rides/estimates -----

// Query parameters: pickup_lat, pickup_lng, pickup_address,
// destination_lat, destination_lng, destination_address.
func (handler *LifecycleHTTPHandler) handleEstimates(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	pickup, ok := handler.locationParam(ctx, w, r, "pickup")
	if !ok {
		return
	}
	destination, ok := handler.locationParam(ctx, w, r, "destination")
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	estimates, err := handler.svc.GetRideEstimates(ctxWithTimeout, pickup, destination)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"estimates": estimates,
	})
}

func (handler *LifecycleHTTPHandler) locationParam(ctx context.Context, w http.ResponseWriter, r *http.Request, prefix string) (geo.Location, bool) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get(prefix+"_lat"), 64)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, prefix+"_lat must be a number", err)
		return geo.Location{}, false
	}
	lng, err := strconv.ParseFloat(q.Get(prefix+"_lng"), 64)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, prefix+"_lng must be a number", err)
		return geo.Location{}, false
	}
	return geo.Location{
		Address:     strings.TrimSpace(q.Get(prefix + "_address")),
		Coordinates: geo.Coordinates{Lat: lat, Lng: lng},
	}, true
}
