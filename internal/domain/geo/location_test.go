package geo

import (
	"math"
	"testing"
)

func TestDistanceKMAmman(t *testing.T) {
	// downtown Amman, ~2 km apart
	a := Coordinates{Lat: 31.9454, Lng: 35.9284}
	b := Coordinates{Lat: 31.9539, Lng: 35.9106}

	got := DistanceKM(a, b)
	if got < 1.8 || got > 2.2 {
		t.Fatalf("expected ~2.0 km, got %f", got)
	}
}

func TestDistanceKMZero(t *testing.T) {
	p := Coordinates{Lat: 31.9454, Lng: 35.9284}
	if got := DistanceKM(p, p); got != 0 {
		t.Fatalf("expected 0 for identical points, got %f", got)
	}
}

func TestDistanceKMSymmetric(t *testing.T) {
	a := Coordinates{Lat: 31.95, Lng: 35.91}
	b := Coordinates{Lat: 32.02, Lng: 35.87}
	if d1, d2 := DistanceKM(a, b), DistanceKM(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("distance not symmetric: %f vs %f", d1, d2)
	}
}

func TestNewLocationValidation(t *testing.T) {
	if _, err := NewLocation("", 31.9, 35.9); err != ErrEmptyAddress {
		t.Fatalf("expected ErrEmptyAddress, got %v", err)
	}
	if _, err := NewLocation("Downtown", 91, 35.9); err != ErrInvalidLatitude {
		t.Fatalf("expected ErrInvalidLatitude, got %v", err)
	}
	if _, err := NewLocation("Downtown", 31.9, -181); err != ErrInvalidLongitude {
		t.Fatalf("expected ErrInvalidLongitude, got %v", err)
	}
	loc, err := NewLocation("  Downtown ", 31.9, 35.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.Address != "Downtown" {
		t.Fatalf("address not trimmed: %q", loc.Address)
	}
}
