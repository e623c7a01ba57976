package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_ZeroDistance(t *testing.T) {
	d := HaversineKm(10, 20, 10, 20)
	if d < 0 || d > 1e-9 {
		t.Fatalf("zero distance expected ~0, got %v", d)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	pairs := [][4]float64{
		{-6.2, 106.8, -6.9, 107.6}, // Jakarta - Bandung
		{0, 0, 45, 90},
		{-33.8, 151.2, 51.5, -0.1},
	}
	for _, p := range pairs {
		ab := HaversineKm(p[0], p[1], p[2], p[3])
		ba := HaversineKm(p[2], p[3], p[0], p[1])
		if math.Abs(ab-ba) > 1e-9 {
			t.Fatalf("distance not symmetric: %v vs %v for %v", ab, ba, p)
		}
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Jakarta (Monas) to Bandung (Gedung Sate) is roughly 118 km great-circle.
	d := HaversineKm(-6.1754, 106.8272, -6.9025, 107.6186)
	if d < 110 || d > 125 {
		t.Fatalf("Jakarta-Bandung distance out of range: %v km", d)
	}
}

func TestRoundKmToTenths(t *testing.T) {
	cases := []struct {
		km   float64
		want int64
	}{
		{0, 0},
		{10.0, 100},
		{10.04, 100},
		{10.05, 101}, // half rounds away from zero
		{10.06, 101},
		{99.99, 1000},
	}
	for _, c := range cases {
		if got := RoundKmToTenths(c.km); got != c.want {
			t.Errorf("RoundKmToTenths(%v) = %d, want %d", c.km, got, c.want)
		}
	}
}

func TestWithinTripLimit_Boundary(t *testing.T) {
	if !WithinTripLimit(100.0) {
		t.Fatalf("exactly 100 km must be accepted")
	}
	if WithinTripLimit(100.1) {
		t.Fatalf("100.1 km must be rejected")
	}
	if WithinTripLimit(101) {
		t.Fatalf("101 km must be rejected")
	}
}

func TestValidateCoordinates(t *testing.T) {
	if !ValidateCoordinates(-6.2, 106.8) {
		t.Fatalf("valid coordinates rejected")
	}
	if ValidateCoordinates(91, 0) || ValidateCoordinates(0, -181) {
		t.Fatalf("out-of-range coordinates accepted")
	}
}
