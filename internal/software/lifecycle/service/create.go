package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/observability"
	"ride-dispatch/internal/ports"
)

// CreateRideRequest validates rider input, freezes pricing, persists a
// pending request and fans offers out to nearby drivers. The request is
// durable even when the fan-out fails: the broadcast error is reported in
// the result, never rolled back into the create.
func (service *lifecycleService) CreateRideRequest(ctx context.Context, in ports.CreateRideRequestInput) (ports.CreateRideRequestResult, error) {
	correlationID := generateCorrelationID()
	ctx = service.logger.WithRequestID(ctx, correlationID)

	// the customer must exist before we take their intent
	if _, err := service.store.Get(ctx, ports.CollectionCustomers, in.CustomerID); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ports.CreateRideRequestResult{}, ride.ErrCustomerNotFound
		}
		return ports.CreateRideRequestResult{}, err
	}

	// build the pending request with frozen pricing and a TTL
	request, err := ride.NewRequest(
		uuid.NewString(),
		in.CustomerID,
		in.Pickup,
		in.Destination,
		in.ServiceType,
		in.PaymentMethod,
		in.Notes,
	)
	if err != nil {
		return ports.CreateRideRequestResult{}, err
	}

	record, err := ports.EncodeRecord(request)
	if err != nil {
		return ports.CreateRideRequestResult{}, err
	}
	if _, err := service.store.Create(ctx, ports.CollectionRequests, record); err != nil {
		service.logger.Error(ctx, "ride_request_create_failed", "Failed to persist ride request", err, map[string]any{
			"customer_id": in.CustomerID,
		})
		return ports.CreateRideRequestResult{}, err
	}

	observability.RequestsCreated.Inc()

	result := ports.CreateRideRequestResult{
		RequestID: request.ID,
		Status:    request.Status.String(),
		Pricing:   request.Pricing,
		ExpiresAt: request.ExpiresAt,
	}

	// fan-out: broadcast offers to candidate drivers (best-effort, outside
	// the create; the request stays pending with zero offers on failure)
	offerIDs, err := service.dispatch.BroadcastOffers(ctx, request)
	if err != nil {
		service.logger.Error(ctx, "offer_broadcast_failed", "Failed to broadcast offers", err, map[string]any{
			"ride_id":     request.ID,
			"customer_id": in.CustomerID,
		})
		result.BroadcastError = err.Error()
		return result, nil
	}
	result.OffersSent = len(offerIDs)

	service.logger.Info(ctx, "ride_requested", "Ride request created", map[string]any{
		"ride_id":      request.ID,
		"customer_id":  in.CustomerID,
		"service_type": request.ServiceType.String(),
		"total_fare":   request.Pricing.Total,
		"offers_sent":  result.OffersSent,
	})
	return result, nil
}
