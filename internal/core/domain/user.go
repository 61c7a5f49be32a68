package domain

import (
	"time"

	"github.com/google/uuid"
)

// Currency identifies one of the two balances a user holds.
type Currency string

const (
	CurrencyCash    Currency = "cash"
	CurrencyCredits Currency = "credits"
)

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	return c == CurrencyCash || c == CurrencyCredits
}

// Other returns the opposite currency of an exchange pair.
func (c Currency) Other() Currency {
	if c == CurrencyCash {
		return CurrencyCredits
	}
	return CurrencyCash
}

// Balances is a point-in-time view of both user balances, in minor units.
type Balances struct {
	Cash    int64 `json:"cash"`
	Credits int64 `json:"credits"`
}

// User is the ledger-owned account record. Only the ledger mutates it.
type User struct {
	ID               uuid.UUID  `json:"id"`
	Cash             int64      `json:"cash"`
	Credits          int64      `json:"credits"`
	LastDailyBonus   *time.Time `json:"last_daily_bonus,omitempty"`
	LastExchange     *time.Time `json:"last_exchange,omitempty"`
	ExchangePressure float64    `json:"exchange_pressure"` // decaying count of recent conversions
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Balance returns the balance held in currency c.
func (u *User) Balance(c Currency) int64 {
	if c == CurrencyCash {
		return u.Cash
	}
	return u.Credits
}

// Adjust adds delta to the balance held in currency c.
func (u *User) Adjust(c Currency, delta int64) {
	if c == CurrencyCash {
		u.Cash += delta
		return
	}
	u.Credits += delta
}

// Balances returns both balances.
func (u *User) Balances() Balances {
	return Balances{Cash: u.Cash, Credits: u.Credits}
}

// Negative reports whether either balance is below zero.
func (u *User) Negative() bool {
	return u.Cash < 0 || u.Credits < 0
}

// BonusAvailableAt returns when the next daily bonus may be claimed.
func (u *User) BonusAvailableAt(cooldown time.Duration) time.Time {
	if u.LastDailyBonus == nil {
		return time.Time{}
	}
	return u.LastDailyBonus.Add(cooldown)
}
