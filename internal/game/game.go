// Package game resolves round outcomes. Every resolver is a pure function of
// its inputs: identical bet, choice, odds and draws always give the same result.
package game

import (
	"encoding/json"
	"fmt"

	"casino-engine/internal/core/domain"
	"casino-engine/pkg/apperror"
)

// Result is a resolved round before any ledger effects.
type Result struct {
	IsWin      bool
	Multiplier float64
	Payout     int64
	Outcome    string
	Detail     map[string]any
}

// Resolver handles one single-shot game.
type Resolver interface {
	Game() domain.Game
	// Validate checks choice against odds and reports how many draws the round consumes.
	Validate(odds *domain.OddsSnapshot, bet int64, choice json.RawMessage) (int, error)
	Resolve(bet int64, choice json.RawMessage, odds *domain.OddsSnapshot, draws []float64) (Result, error)
}

// Registry maps game names to resolvers.
type Registry map[domain.Game]Resolver

// NewRegistry returns the resolvers for every single-shot game.
func NewRegistry() Registry {
	r := Registry{}
	for _, res := range []Resolver{Slots{}, Coinflip{}, Roulette{}, Plinko{}} {
		r[res.Game()] = res
	}
	return r
}

// ValidateBet applies the checks shared by every game. ev may be nil.
func ValidateBet(odds *domain.OddsSnapshot, g domain.Game, bet int64, ev *domain.TimedEvent) error {
	lim, ok := odds.Limits(g)
	if !ok {
		return apperror.ErrUnknownGame(string(g))
	}
	if !lim.Enabled {
		return apperror.ErrGameDisabled(string(g))
	}
	if bet <= 0 {
		return apperror.ErrInvalidAmount()
	}
	maxBet := lim.MaxBet
	if ev != nil && !ev.Exempt(g) && ev.MaxBetMultiplier > 1 {
		maxBet = domain.ApplyMultiplier(maxBet, ev.MaxBetMultiplier)
	}
	if bet < lim.MinBet || bet > maxBet {
		return apperror.Validation(fmt.Sprintf("bet must be between %d and %d", lim.MinBet, maxBet))
	}
	return nil
}

// EventDraws is the number of extra draws an active event needs for g.
func EventDraws(ev *domain.TimedEvent, g domain.Game) int {
	if ev == nil || ev.Exempt(g) {
		return 0
	}
	return 1
}

// ApplyEvent adjusts a resolved result for an active timed event.
// A winning round is forfeited when draw falls under the win-rate reduction;
// otherwise winnings are scaled.
func ApplyEvent(res Result, bet int64, ev *domain.TimedEvent, draw float64) Result {
	if !res.IsWin {
		return res
	}
	if res.Detail == nil {
		res.Detail = map[string]any{}
	}
	res.Detail["event"] = ev.Name
	if draw < ev.WinRateReduction {
		res.Detail["event_forfeit"] = true
		res.Detail["forfeited_payout"] = res.Payout
		res.IsWin = false
		res.Multiplier = 0
		res.Payout = 0
		res.Outcome = res.Outcome + "_forfeited"
		return res
	}
	res.Multiplier *= ev.WinningsMultiplier
	res.Payout = domain.ApplyMultiplier(res.Payout, ev.WinningsMultiplier)
	res.IsWin = res.Payout > bet
	return res
}

func decodeChoice(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return apperror.Validation("choice is required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperror.Validation(fmt.Sprintf("malformed choice: %v", err))
	}
	return nil
}

func requireDraws(draws []float64, n int) error {
	if len(draws) < n {
		return fmt.Errorf("need %d draws, got %d", n, len(draws))
	}
	return nil
}
