package pricing

import "testing"

func TestPriceForTiers(t *testing.T) {
	cases := []struct {
		name     string
		tier     ServiceType
		distance float64
		total    float64
	}{
		{"economy 4km", ServiceEconomy, 4, 3.5},
		{"standard 2km", ServiceStandard, 2, 3.4},
		{"premium 10km", ServicePremium, 10, 13.0},
		{"economy zero distance", ServiceEconomy, 0, 1.5},
		{"standard zero distance", ServiceStandard, 0, 2.0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := PriceFor(tc.distance, tc.tier)
			if p.Total != tc.total {
				t.Fatalf("total = %f, want %f", p.Total, tc.total)
			}
			if p.Currency != DefaultCurrency {
				t.Fatalf("currency = %q", p.Currency)
			}
			if p.TimeFare != 0 || p.Surcharge != 0 || p.Discount != 0 {
				t.Fatalf("extension components must be zero in base tariff: %+v", p)
			}
		})
	}
}

func TestPriceForDeterministic(t *testing.T) {
	first := PriceFor(7.3, ServicePremium)
	for i := 0; i < 100; i++ {
		if got := PriceFor(7.3, ServicePremium); got != first {
			t.Fatalf("pricing not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestPriceForRounding(t *testing.T) {
	// 3.333 km * 0.7 = 2.3331 -> 2.33
	p := PriceFor(3.333, ServiceStandard)
	if p.DistanceFare != 2.33 {
		t.Fatalf("distance fare = %f, want 2.33", p.DistanceFare)
	}
	if p.Total != 4.33 {
		t.Fatalf("total = %f, want 4.33", p.Total)
	}
}

func TestEstimateDurationMinutes(t *testing.T) {
	if got := EstimateDurationMinutes(2.0); got != 4 {
		t.Fatalf("duration for 2km = %d, want 4", got)
	}
	if got := EstimateDurationMinutes(2.1); got != 5 {
		t.Fatalf("duration for 2.1km = %d, want 5", got)
	}
	if got := EstimateDurationMinutes(0); got != 0 {
		t.Fatalf("duration for 0km = %d, want 0", got)
	}
}

func TestParseServiceType(t *testing.T) {
	if st, err := ParseServiceType(" Standard "); err != nil || st != ServiceStandard {
		t.Fatalf("parse standard: %v %v", st, err)
	}
	if _, err := ParseServiceType("luxury"); err != ErrInvalidServiceType {
		t.Fatalf("expected ErrInvalidServiceType, got %v", err)
	}
}

func TestParsePaymentMethod(t *testing.T) {
	if pm, err := ParsePaymentMethod("CARD"); err != nil || pm != PaymentCard {
		t.Fatalf("parse card: %v %v", pm, err)
	}
	if _, err := ParsePaymentMethod("crypto"); err != ErrInvalidPaymentMethod {
		t.Fatalf("expected ErrInvalidPaymentMethod, got %v", err)
	}
}
