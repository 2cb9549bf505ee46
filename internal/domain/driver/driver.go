package driver

import (
	"errors"
	"strings"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/ride"
)

// Driver is the durable driver profile. IsAvailable is kept in lockstep with
// Status (true iff online): it is mutated by explicit status updates and
// implicitly by ride binding and release.
type Driver struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Phone       string           `json:"phone"`
	Rating      float64          `json:"rating"`
	TotalRides  int              `json:"total_rides"`
	Vehicle     ride.Vehicle     `json:"vehicle"`
	Location    *geo.Coordinates `json:"location,omitempty"`
	Status      Status           `json:"status"`
	IsOnline    bool             `json:"is_online"`
	IsAvailable bool             `json:"is_available"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

var (
	ErrNameRequired        = errors.New("driver name is required")
	ErrInvalidRating       = errors.New("rating must be between 1.0 and 5.0")
	ErrInvalidStatusSwitch = errors.New("invalid driver status transition")
)

// NewDriver creates a Driver profile with sane defaults (offline, rating 5.0).
func NewDriver(id, name, phone string, vehicle ride.Vehicle) (*Driver, error) {
	if name = strings.TrimSpace(name); name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now().UTC()
	d := &Driver{
		ID:        id,
		Name:      name,
		Phone:     strings.TrimSpace(phone),
		Rating:    5.0,
		Vehicle:   vehicle,
		Status:    StatusOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	d.applyStatus(StatusOffline)
	return d, nil
}

// SetStatus applies an explicit status update. Leaving busy is reserved for
// ride release: a driver bound to an active order cannot self-serve out.
func (d *Driver) SetStatus(next Status) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if d.Status == StatusBusy && next != StatusBusy {
		return ErrInvalidStatusSwitch
	}
	d.applyStatus(next)
	return nil
}

// Bind marks the driver busy after winning an offer.
func (d *Driver) Bind() error {
	if !d.Status.Available() {
		return ErrInvalidStatusSwitch
	}
	d.applyStatus(StatusBusy)
	return nil
}

// Release returns the driver to online after a terminal ride state.
func (d *Driver) Release() {
	d.applyStatus(StatusOnline)
}

// CompleteRide applies the side effects of a completed order.
func (d *Driver) CompleteRide() {
	d.TotalRides++
	d.Release()
}

// UpdateLocation stores the last reported position. Best-effort stream:
// the caller may drop or overwrite updates freely.
func (d *Driver) UpdateLocation(c geo.Coordinates) {
	d.Location = &c
	d.UpdatedAt = time.Now().UTC()
}

// Snapshot returns the public profile copied into orders at binding time.
func (d *Driver) Snapshot() ride.DriverInfo {
	return ride.DriverInfo{
		ID:      d.ID,
		Name:    d.Name,
		Phone:   d.Phone,
		Rating:  d.Rating,
		Vehicle: d.Vehicle,
	}
}

func (d *Driver) applyStatus(next Status) {
	d.Status = next
	d.IsOnline = next == StatusOnline || next == StatusBusy
	d.IsAvailable = next.Available()
	d.UpdatedAt = time.Now().UTC()
}
