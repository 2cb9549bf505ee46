package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"
)

const serviceTimeout = 5 * time.Second

// EarningsHTTPHandler adapts HTTP requests to the EarningsService.
type EarningsHTTPHandler struct {
	svc    ports.EarningsService
	logger *logger.Logger
	auth   *jwt.Manager
}

// NewEarningsHTTPHandler wires an HTTP handler around the EarningsService.
func NewEarningsHTTPHandler(svc ports.EarningsService, logger *logger.Logger, auth *jwt.Manager) *EarningsHTTPHandler {
	return &EarningsHTTPHandler{svc: svc, logger: logger, auth: auth}
}

// RegisterRoutes mounts earnings and history endpoints on the mux.
func (handler *EarningsHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /drivers/{driver_id}/earnings",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleEarnings),
	)
	mux.HandleFunc("GET /drivers/{driver_id}/history",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleDriverHistory),
	)
	mux.HandleFunc("GET /customers/{customer_id}/history",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleCustomerHistory),
	)
}

// ----- Handler: GET /drivers/{driver_id}/earnings -----

func (handler *EarningsHTTPHandler) handleEarnings(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.ownPathID(ctx, w, r, "driver_id")
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	summary, err := handler.svc.EarningsFor(ctxWithTimeout, driverID, time.Now().UTC())
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to compute earnings", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, summary)
}

// ----- Handler: GET /drivers/{driver_id}/history -----

func (handler *EarningsHTTPHandler) handleDriverHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	driverID, ok := handler.ownPathID(ctx, w, r, "driver_id")
	if !ok {
		return
	}
	limit, ok := handler.limitParam(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	orders, err := handler.svc.HistoryForDriver(ctxWithTimeout, driverID, limit)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to load ride history", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"rides": orders,
		"count": len(orders),
	})
}

// ----- Handler: GET /customers/{customer_id}/history -----

func (handler *EarningsHTTPHandler) handleCustomerHistory(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	customerID, ok := handler.ownPathID(ctx, w, r, "customer_id")
	if !ok {
		return
	}
	limit, ok := handler.limitParam(ctx, w, r)
	if !ok {
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, serviceTimeout)
	defer cancel()

	orders, err := handler.svc.HistoryForCustomer(ctxWithTimeout, customerID, limit)
	if err != nil {
		handler.httpError(ctxWithTimeout, w, http.StatusInternalServerError, "failed to load ride history", err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"rides": orders,
		"count": len(orders),
	})
}

// ----- shared helpers -----

// ownPathID reads a path id and verifies it matches the token subject.
func (handler *EarningsHTTPHandler) ownPathID(ctx context.Context, w http.ResponseWriter, r *http.Request, param string) (string, bool) {
	id := r.PathValue(param)
	if id == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "missing "+param+" in path", nil)
		return "", false
	}
	claims := jwt.RequireClaims(r)
	if claims == nil {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return "", false
	}
	if id != claims.Subject {
		handler.httpError(ctx, w, http.StatusForbidden, param+" does not match token subject", errors.New("subject mismatch"))
		return "", false
	}
	return id, true
}

// limitParam parses the optional ?limit= query parameter. Zero means the
// service default.
func (handler *EarningsHTTPHandler) limitParam(ctx context.Context, w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		handler.httpError(ctx, w, http.StatusBadRequest, "limit must be a non-negative integer", err)
		return 0, false
	}
	return limit, true
}

func (handler *EarningsHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
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

func (handler *EarningsHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
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

func (handler *EarningsHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		var b [12]byte
		_, _ = rand.Read(b[:])
		reqID = hex.EncodeToString(b[:])
	}
	return handler.logger.WithRequestID(ctx, reqID)
}
