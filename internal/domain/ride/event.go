package ride

import (
	"time"

	"ride-dispatch/internal/domain/geo"
)

// Event is one entry of an order's append-only timeline. Entries are only
// ever appended, never rewritten, and their timestamps are non-decreasing.
type Event struct {
	Status    Status           `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
	Notes     string           `json:"notes,omitempty"`
	Location  *geo.Coordinates `json:"location,omitempty"`
}

// NewEvent builds a timeline entry stamped with the current time.
func NewEvent(status Status, notes string, location *geo.Coordinates) Event {
	return Event{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Notes:     notes,
		Location:  location,
	}
}
