package driver

import (
	"errors"
	"strings"
)

// Status is a driver's operational status.
type Status string

const (
	StatusOffline  Status = "offline"
	StatusOnline   Status = "online"
	StatusBusy     Status = "busy"
	StatusInactive Status = "inactive"
)

var ErrInvalidStatus = errors.New("invalid driver status")

// ParseStatus normalizes (lowercases+trims) and validates a driver status string.
func ParseStatus(in string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(in)))
	if status.Valid() {
		return status, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether the status is one of the allowed driver status constants.
func (status Status) Valid() bool {
	switch status {
	case StatusOffline, StatusOnline, StatusBusy, StatusInactive:
		return true
	default:
		return false
	}
}

// Available reports whether the status means "can receive offers".
// A driver is available iff online.
func (status Status) Available() bool {
	return status == StatusOnline
}

// String returns the string representation of the Status.
func (status Status) String() string {
	return string(status)
}
