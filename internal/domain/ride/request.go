package ride

import (
	"strings"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
)

// RequestStatus is the lifecycle of an unmatched rider intent.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestAccepted  RequestStatus = "accepted"
	RequestRejected  RequestStatus = "rejected"
	RequestExpired   RequestStatus = "expired"
	RequestCancelled RequestStatus = "cancelled"
)

// Valid reports whether the request status is one of the allowed constants.
func (status RequestStatus) Valid() bool {
	switch status {
	case RequestPending, RequestAccepted, RequestRejected, RequestExpired, RequestCancelled:
		return true
	default:
		return false
	}
}

// Terminal indicates the request can no longer change state.
func (status RequestStatus) Terminal() bool {
	return status != RequestPending
}

// String returns the string representation of the RequestStatus.
func (status RequestStatus) String() string {
	return string(status)
}

// RequestTTL is how long a pending request stays acceptable after creation.
const RequestTTL = 10 * time.Minute

// Request is an unmatched rider intent awaiting a driver. Pricing is computed
// once at creation and frozen; the bound order copies it verbatim.
type Request struct {
	ID            string                `json:"id"`
	CustomerID    string                `json:"customer_id"`
	Pickup        geo.Location          `json:"pickup"`
	Destination   geo.Location          `json:"destination"`
	ServiceType   pricing.ServiceType   `json:"service_type"`
	PaymentMethod pricing.PaymentMethod `json:"payment_method"`
	Notes         string                `json:"notes,omitempty"`
	Status        RequestStatus         `json:"status"`
	Pricing       pricing.Pricing       `json:"pricing"`
	CreatedAt     time.Time             `json:"created_at"`
	ExpiresAt     time.Time             `json:"expires_at"`
}

// NewRequest builds a pending ride request with frozen pricing and a TTL.
func NewRequest(id, customerID string, pickup, destination geo.Location, serviceType pricing.ServiceType, method pricing.PaymentMethod, notes string) (*Request, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrCustomerNotFound
	}
	if err := pickup.Validate(); err != nil {
		return nil, err
	}
	if err := destination.Validate(); err != nil {
		return nil, err
	}
	if !serviceType.Valid() {
		return nil, pricing.ErrInvalidServiceType
	}
	if !method.Valid() {
		return nil, pricing.ErrInvalidPaymentMethod
	}

	now := time.Now().UTC()
	distance := geo.DistanceKM(pickup.Coordinates, destination.Coordinates)
	return &Request{
		ID:            id,
		CustomerID:    customerID,
		Pickup:        pickup,
		Destination:   destination,
		ServiceType:   serviceType,
		PaymentMethod: method,
		Notes:         strings.TrimSpace(notes),
		Status:        RequestPending,
		Pricing:       pricing.PriceFor(distance, serviceType),
		CreatedAt:     now,
		ExpiresAt:     now.Add(RequestTTL),
	}, nil
}

// Expired reports whether the request's TTL has lapsed at the given instant.
// Expiry is enforced at read time; the sweeper writes the terminal status.
func (request *Request) Expired(now time.Time) bool {
	return now.After(request.ExpiresAt)
}

// EffectiveStatus folds read-time expiry into the stored status.
func (request *Request) EffectiveStatus(now time.Time) RequestStatus {
	if request.Status == RequestPending && request.Expired(now) {
		return RequestExpired
	}
	return request.Status
}

// Acceptable reports whether an offer for this request may still be accepted.
func (request *Request) Acceptable(now time.Time) bool {
	return request.EffectiveStatus(now) == RequestPending
}
