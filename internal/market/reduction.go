// Package market evaluates catalog records against the operator's criteria.
package market

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ReductionPercent is how far price sits below rap, as a percentage rounded
// to two decimals. It is 0 when rap is not positive and negative when the
// item trades above its average.
func ReductionPercent(price, rap float64) float64 {
	if rap <= 0 {
		return 0
	}
	r := decimal.NewFromFloat(rap)
	pct := r.Sub(decimal.NewFromFloat(price)).Div(r).Mul(hundred).Round(2)
	f, _ := pct.Float64()
	return f
}
