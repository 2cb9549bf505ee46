package geo

import (
	"errors"
	"math"
	"strings"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is an immutable value type embedded by rides: a human-readable
// address plus its coordinates and an optional provider place id.
type Location struct {
	Address     string      `json:"address"`
	Coordinates Coordinates `json:"coordinates"`
	PlaceID     string      `json:"place_id,omitempty"`
}

var (
	ErrEmptyAddress     = errors.New("address cannot be empty")
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
)

// NewLocation constructs a validated Location.
func NewLocation(address string, lat, lng float64) (Location, error) {
	address = strings.TrimSpace(address)
	loc := Location{
		Address:     address,
		Coordinates: Coordinates{Lat: lat, Lng: lng},
	}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Validate checks invariants of the Location value.
func (location Location) Validate() error {
	if strings.TrimSpace(location.Address) == "" {
		return ErrEmptyAddress
	}
	return location.Coordinates.Validate()
}

// Validate checks the coordinate ranges.
func (coordinates Coordinates) Validate() error {
	if coordinates.Lat < -90 || coordinates.Lat > 90 {
		return ErrInvalidLatitude
	}
	if coordinates.Lng < -180 || coordinates.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// earthRadiusKM is the mean Earth radius used by the Haversine formula.
const earthRadiusKM = 6371.0

// DistanceKM returns the great-circle distance between two points in
// kilometers (Haversine). Pure and deterministic.
func DistanceKM(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}
