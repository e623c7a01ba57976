package pricing

import "testing"

func TestFare(t *testing.T) {
	// 10.0 km at Rp 3.000/km is the reference scenario: Rp 30.000.
	if got := Fare(100, 3000); got != 30000 {
		t.Fatalf("Fare(100, 3000) = %d, want 30000", got)
	}
	// 12.3 km at Rp 3.000/km.
	if got := Fare(123, 3000); got != 36900 {
		t.Fatalf("Fare(123, 3000) = %d, want 36900", got)
	}
	if got := Fare(0, 3000); got != 0 {
		t.Fatalf("Fare(0, 3000) = %d, want 0", got)
	}
}

func TestFare_Deterministic(t *testing.T) {
	// A rate that is not a multiple of 10 truncates, but always the same way.
	a := Fare(105, 3001)
	b := Fare(105, 3001)
	if a != b {
		t.Fatalf("fare not deterministic: %d vs %d", a, b)
	}
	if a != 31510 { // 105*3001 = 315105; /10 truncates
		t.Fatalf("Fare(105, 3001) = %d, want 31510", a)
	}
}

func TestFormatRupiah(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "Rp. 0,00"},
		{20000, "Rp. 20.000,00"},
		{100000000, "Rp. 100.000.000,00"},
		{-500, "-Rp. 500,00"},
	}
	for _, c := range cases {
		if got := FormatRupiah(c.amount); got != c.want {
			t.Errorf("FormatRupiah(%d) = %q, want %q", c.amount, got, c.want)
		}
	}
}
