package ride

import (
	"errors"
	"strings"
)

// Status is the ride-order status. Orders are born assigned (an order only
// exists once arbitration bound a driver) and advance through a strict linear
// chain; cancelled is reachable from any non-terminal state.
type Status string

const (
	StatusAssigned       Status = "assigned"
	StatusDriverArriving Status = "driver_arriving"
	StatusDriverArrived  Status = "driver_arrived"
	StatusPickedUp       Status = "picked_up"
	StatusInProgress     Status = "in_progress"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// rank orders the linear chain; terminal states share the top rank.
var rank = map[Status]int{
	StatusAssigned:       0,
	StatusDriverArriving: 1,
	StatusDriverArrived:  2,
	StatusPickedUp:       3,
	StatusInProgress:     4,
	StatusCompleted:      5,
	StatusCancelled:      5,
}

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the allowed order status constants.
func (status Status) Valid() bool {
	_, ok := rank[status]
	return ok
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}

// Terminal indicates the order reached a final state.
func (status Status) Terminal() bool {
	return status == StatusCompleted || status == StatusCancelled
}

// CanTransitionTo reports whether the order may move from status to next.
// Forward-only, one step at a time; cancelled from any non-terminal state.
func (status Status) CanTransitionTo(next Status) bool {
	if !status.Valid() || !next.Valid() {
		return false
	}
	if status.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	return rank[next] == rank[status]+1 && next != StatusCancelled
}
