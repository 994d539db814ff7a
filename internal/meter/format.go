package meter

import "github.com/shopspring/decimal"

// Fixed formats f with the given number of decimals, rounding half away
// from zero on the shortest decimal representation of f.
func Fixed(f float64, places int32) string {
	return decimal.NewFromFloat(f).StringFixed(places)
}

// Round2 rounds f to 2 decimals, half away from zero.
func Round2(f float64) float64 {
	v, _ := decimal.NewFromFloat(f).Round(2).Float64()
	return v
}
