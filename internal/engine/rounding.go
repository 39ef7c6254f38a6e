package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// money rounds a currency amount to cents.
func money(v float64) float64 {
	return round(v, 2)
}

// ratio rounds a dimensionless figure for output.
func ratio(v float64) float64 {
	return round(v, 6)
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
