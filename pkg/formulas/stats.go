package formulas

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of decimal values.
// Currency amounts stay in decimal arithmetic end to end.
func Mean(data []decimal.Decimal) decimal.Decimal {
	if len(data) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, d := range data {
		sum = sum.Add(d)
	}
	return sum.Div(decimal.NewFromInt(int64(len(data))))
}

// StdDev calculates the sample standard deviation (Bessel's correction)
// of a slice of decimal values. The result is a statistical estimate,
// not a ledger amount, so it is computed in float64.
func StdDev(data []decimal.Decimal) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(Floats(data), nil)
}

// Floats converts a decimal series to float64 for statistical routines.
func Floats(data []decimal.Decimal) []float64 {
	out := make([]float64, len(data))
	for i, d := range data {
		out[i], _ = d.Float64()
	}
	return out
}
