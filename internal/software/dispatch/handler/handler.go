package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/ports"
)

const serviceTimeout = 5 * time.Second

// DispatchHTTPHandler adapts HTTP requests to the DispatchService.
type DispatchHTTPHandler struct {
	svc     ports.DispatchService
	logger  *logger.Logger
	auth    *jwt.Manager
	gateway *websocket.Gateway
}

// NewDispatchHTTPHandler wires an HTTP handler around the DispatchService.
func NewDispatchHTTPHandler(
	svc ports.DispatchService,
	logger *logger.Logger,
	auth *jwt.Manager,
	gateway *websocket.Gateway,
) *DispatchHTTPHandler {
	return &DispatchHTTPHandler{svc: svc, logger: logger, auth: auth, gateway: gateway}
}

// RegisterRoutes mounts driver offer endpoints on the mux.
func (handler *DispatchHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /offers/{offer_id}/accept",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleAcceptOffer),
	)
	mux.HandleFunc("POST /offers/{offer_id}/decline",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleDeclineOffer),
	)

	// WebSocket feed runs its own first-frame auth
	mux.HandleFunc("GET /ws/driver/{driver_id}", handler.gateway.ConnectDriver)
}

// ----- Handler: POST /offers/{offer_id}/accept -----

func (handler *DispatchHTTPHandler) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	offerID, driverID, ok := handler.offerFromPath(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	res, err := handler.svc.AcceptOffer(ctxWithTimeout, offerID, driverID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: POST /offers/{offer_id}/decline -----

func (handler *DispatchHTTPHandler) handleDeclineOffer(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	offerID, driverID, ok := handler.offerFromPath(ctx, w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON body", err)
			return
		}
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	if err := handler.svc.DeclineOffer(ctxWithTimeout, offerID, driverID, body.Reason); err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"offer_id": offerID,
		"status":   "declined",
	})
}

// ----- shared helpers -----

func (handler *DispatchHTTPHandler) offerFromPath(ctx context.Context, w http.ResponseWriter, r *http.Request) (offerID, driverID string, ok bool) {
	offerID = r.PathValue("offer_id")
	if offerID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing offer_id in path", nil)
		return "", "", false
	}
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return "", "", false
	}
	return offerID, claims.Subject, true
}

func (handler *DispatchHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ride.ErrOfferNotFound),
		errors.Is(err, ride.ErrRequestNotFound),
		errors.Is(err, ride.ErrDriverNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ride.ErrDriverMismatch):
		status = http.StatusForbidden
	case errors.Is(err, ride.ErrOfferAlreadyResolved),
		errors.Is(err, ride.ErrInvalidTransition):
		status = http.StatusConflict
	}
	handler.httpError(ctx, w, status, err.Error(), err)
}

func (handler *DispatchHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

func (handler *DispatchHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

func (handler *DispatchHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		var b [12]byte
		_, _ = rand.Read(b[:])
		reqID = hex.EncodeToString(b[:])
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
