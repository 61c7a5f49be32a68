package domain

import (
	"github.com/shopspring/decimal"
)

// ApplyMultiplier returns amount*m floored to the minor unit.
func ApplyMultiplier(amount int64, m float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(m)).
		Floor().
		IntPart()
}

// PercentOf returns pct percent of amount, floored.
func PercentOf(amount int64, pct float64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}

// Convert exchanges amount of from into the other currency at rate,
// where rate is credits per unit of cash.
func Convert(amount int64, from Currency, rate float64) int64 {
	a := decimal.NewFromInt(amount)
	r := decimal.NewFromFloat(rate)
	if from == CurrencyCash {
		return a.Mul(r).Floor().IntPart()
	}
	if r.IsZero() {
		return 0
	}
	return a.Div(r).Floor().IntPart()
}

// RoundRate trims a rate to four decimal places.
func RoundRate(rate float64) float64 {
	f, _ := decimal.NewFromFloat(rate).Round(4).Float64()
	return f
}
