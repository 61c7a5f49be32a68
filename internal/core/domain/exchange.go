package domain

import "time"

// ExchangeRate is the process-wide cash/credits rate (credits per cash unit).
type ExchangeRate struct {
	Current          float64   `json:"current"`
	Base             float64   `json:"base"`
	FluctuationRange float64   `json:"fluctuation_range"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Bounds returns the inclusive band the rate must stay within.
func (r ExchangeRate) Bounds() (low, high float64) {
	return r.Base * (1 - r.FluctuationRange), r.Base * (1 + r.FluctuationRange)
}

// Clamp pins v to the rate band.
func (r ExchangeRate) Clamp(v float64) float64 {
	low, high := r.Bounds()
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// ExchangeResult describes a completed conversion.
type ExchangeResult struct {
	From        Currency `json:"from"`
	To          Currency `json:"to"`
	Amount      int64    `json:"amount"`
	Received    int64    `json:"received"`
	MarketRate  float64  `json:"market_rate"`
	Penalty     float64  `json:"penalty"`
	AppliedRate float64  `json:"applied_rate"`
	Balances    Balances `json:"balances"`
}
