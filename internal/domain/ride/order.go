package ride

import (
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/pricing"
)

// Vehicle describes the car a driver operates; snapshotted into orders.
type Vehicle struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Color string `json:"color,omitempty"`
	Plate string `json:"plate,omitempty"`
}

// DriverInfo is the accepting driver's public profile, copied into the order
// at binding time so the rider-visible snapshot survives later profile edits.
type DriverInfo struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Phone   string  `json:"phone,omitempty"`
	Rating  float64 `json:"rating"`
	Vehicle Vehicle `json:"vehicle"`
}

// Order is the bound, in-progress-or-completed ride. An order is only ever
// created already assigned, by dispatch arbitration; once bound its driver is
// never reassigned (cancel-and-recreate is the only path to a new driver).
type Order struct {
	ID            string                `json:"id"`
	CustomerID    string                `json:"customer_id"`
	DriverID      string                `json:"driver_id"`
	RequestID     string                `json:"request_id"`
	Pickup        geo.Location          `json:"pickup"`
	Destination   geo.Location          `json:"destination"`
	ServiceType   pricing.ServiceType   `json:"service_type"`
	PaymentMethod pricing.PaymentMethod `json:"payment_method"`
	Status        Status                `json:"status"`
	Pricing       pricing.Pricing       `json:"pricing"`
	Driver        DriverInfo            `json:"driver"`
	Timeline      []Event               `json:"timeline"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
}

// NewOrder promotes an accepted request into an assigned order bound to the
// winning driver. Pricing is copied verbatim (frozen at request time).
func NewOrder(id string, request *Request, info DriverInfo) (*Order, error) {
	if info.ID == "" {
		return nil, ErrDriverNotFound
	}

	now := time.Now().UTC()
	return &Order{
		ID:            id,
		CustomerID:    request.CustomerID,
		DriverID:      info.ID,
		RequestID:     request.ID,
		Pickup:        request.Pickup,
		Destination:   request.Destination,
		ServiceType:   request.ServiceType,
		PaymentMethod: request.PaymentMethod,
		Status:        StatusAssigned,
		Pricing:       request.Pricing,
		Driver:        info,
		Timeline:      []Event{NewEvent(StatusAssigned, "driver assigned", nil)},
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Advance moves the order to next, appending one timeline entry. It fails
// with ErrInvalidTransition on out-of-order, skipped or terminal-state moves
// and leaves the order untouched in that case.
func (order *Order) Advance(next Status, notes string, location *geo.Coordinates) error {
	if !order.Status.CanTransitionTo(next) {
		return ErrInvalidTransition
	}

	now := time.Now().UTC()
	order.Status = next
	order.UpdatedAt = now
	if next == StatusCompleted {
		order.CompletedAt = &now
	}
	order.Timeline = append(order.Timeline, Event{
		Status:    next,
		Timestamp: now,
		Notes:     notes,
		Location:  location,
	})
	return nil
}

// OwnedBy reports whether the given driver is bound to this order.
func (order *Order) OwnedBy(driverID string) bool {
	return order.DriverID == driverID
}
