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

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/ports"
)

const serviceTimeout = 5 * time.Second

// LifecycleHTTPHandler adapts HTTP requests to the LifecycleService.
type LifecycleHTTPHandler struct {
	svc     ports.LifecycleService
	logger  *logger.Logger
	auth    *jwt.Manager
	gateway *websocket.Gateway
}

// NewLifecycleHTTPHandler wires an HTTP handler around the LifecycleService.
func NewLifecycleHTTPHandler(
	svc ports.LifecycleService,
	logger *logger.Logger,
	auth *jwt.Manager,
	gateway *websocket.Gateway,
) *LifecycleHTTPHandler {
	return &LifecycleHTTPHandler{svc: svc, logger: logger, auth: auth, gateway: gateway}
}

// RegisterRoutes mounts rider and driver lifecycle endpoints on the mux.
func (handler *LifecycleHTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rides",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleCreateRide),
	)
	mux.HandleFunc("POST /rides/{request_id}/cancel",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleCancelRequest),
	)
	mux.HandleFunc("GET /rides/estimates",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleEstimates),
	)
	mux.HandleFunc("POST /orders/{order_id}/cancel",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider)(handler.handleCancelOrder),
	)
	mux.HandleFunc("POST /orders/{order_id}/status",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleOrderStatus),
	)
	mux.HandleFunc("POST /drivers/{driver_id}/status",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleDriverStatus),
	)
	mux.HandleFunc("POST /drivers/{driver_id}/location",
		jwt.AuthMiddlewareFunc(handler.auth, user.RoleDriver)(handler.handleDriverLocation),
	)

	// WebSocket feeds run their own first-frame auth
	mux.HandleFunc("GET /ws/rider/{customer_id}", handler.gateway.ConnectRider)

	mux.HandleFunc("POST /tokens", handler.handleCreateToken)
}

// ----- token minting (deployment glue) -----

type TokenRequest struct {
	UserID string    `json:"user_id"`
	Role   user.Role `json:"role"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      user.Role `json:"role"`
}

func (handler *LifecycleHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	tokenString, claims, err := handler.auth.IssueUserToken(req.UserID, req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "Failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated successfully",
		map[string]any{"user_id": req.UserID, "role": req.Role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, TokenResponse{
		Token:     tokenString,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      req.Role,
	})
}

// ----- general helpers -----

// decodeBody strictly decodes a bounded JSON body into dst.
func (handler *LifecycleHTTPHandler) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}
	return true
}

// serviceError maps a service failure onto an HTTP status.
func (handler *LifecycleHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	handler.httpError(ctx, w, statusFor(err), err.Error(), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ride.ErrCustomerNotFound),
		errors.Is(err, ride.ErrDriverNotFound),
		errors.Is(err, ride.ErrRequestNotFound),
		errors.Is(err, ride.ErrOfferNotFound),
		errors.Is(err, ride.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ride.ErrDriverMismatch),
		errors.Is(err, ride.ErrCustomerMismatch):
		return http.StatusForbidden
	case errors.Is(err, ride.ErrInvalidTransition),
		errors.Is(err, ride.ErrOfferAlreadyResolved),
		errors.Is(err, driver.ErrInvalidStatusSwitch):
		return http.StatusConflict
	case errors.Is(err, geo.ErrEmptyAddress),
		errors.Is(err, geo.ErrInvalidLatitude),
		errors.Is(err, geo.ErrInvalidLongitude),
		errors.Is(err, pricing.ErrInvalidServiceType),
		errors.Is(err, pricing.ErrInvalidPaymentMethod),
		errors.Is(err, ride.ErrInvalidStatus),
		errors.Is(err, driver.ErrInvalidStatus):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (handler *LifecycleHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
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

// httpError sends a JSON error response with a message.
func (handler *LifecycleHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *LifecycleHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
