package utils

import (
	"math"
	"strconv"
)

// Round2 rounds x to 2 decimal places (banking-style simple round).
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// FormatRupiah renders a whole-rupiah amount with dot thousand separators,
// e.g. 50000 -> "Rp 50.000".
func FormatRupiah(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := strconv.FormatInt(amount, 10)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "." + s[i:]
	}
	if neg {
		return "-Rp " + s
	}
	return "Rp " + s
}
