package pricing

import (
	"fmt"
	"strings"
)

// Fare computes the price of a trip from the rounded distance (in tenths of
// a km) and the configured rate per km, in whole rupiah. The computation is
// pure integer arithmetic so it is reproducible on every service: with rates
// that are multiples of 10 it is exact, otherwise it truncates toward zero
// the same way everywhere.
func Fare(distanceTenthsKm, ratePerKm int64) int64 {
	return distanceTenthsKm * ratePerKm / 10
}

// FormatRupiah renders an amount as "Rp. 1.234.567,00" for user-facing
// messages such as deficit reports and admin views.
func FormatRupiah(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	out := "Rp. " + strings.Join(groups, ".") + ",00"
	if neg {
		out = "-" + out
	}
	return out
}
