package game

import (
	"encoding/json"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/rng"
)

const slotReels = 3

// Slots spins three independently weighted reels.
// Three of a kind pays the symbol's triple multiplier; a pair on the first
// two or last two reels pays its double multiplier.
type Slots struct{}

func (Slots) Game() domain.Game { return domain.GameSlots }

func (Slots) Validate(_ *domain.OddsSnapshot, _ int64, _ json.RawMessage) (int, error) {
	return slotReels, nil
}

func (Slots) Resolve(bet int64, _ json.RawMessage, odds *domain.OddsSnapshot, draws []float64) (Result, error) {
	if err := requireDraws(draws, slotReels); err != nil {
		return Result{}, err
	}
	syms := odds.Slots.Symbols
	weights := make([]float64, len(syms))
	for i, s := range syms {
		weights[i] = s.Weight
	}

	idx := make([]int, slotReels)
	reels := make([]string, slotReels)
	for i := 0; i < slotReels; i++ {
		idx[i] = rng.Pick(draws[i], weights)
		reels[i] = syms[idx[i]].Symbol
	}

	var mult float64
	outcome := "no_match"
	switch {
	case idx[0] == idx[1] && idx[1] == idx[2]:
		mult = syms[idx[0]].Triple
		outcome = "triple"
		if odds.Slots.JackpotSym != "" && reels[0] == odds.Slots.JackpotSym {
			outcome = "jackpot"
		}
	case idx[0] == idx[1] || idx[1] == idx[2]:
		mult = syms[idx[1]].Double
		outcome = "pair"
	}

	payout := domain.ApplyMultiplier(bet, mult)
	return Result{
		IsWin:      payout > bet,
		Multiplier: mult,
		Payout:     payout,
		Outcome:    outcome,
		Detail:     map[string]any{"reels": reels},
	}, nil
}

// SlotsRTP is the exact theoretical return of a slots table.
func SlotsRTP(o domain.SlotsOdds) float64 {
	var total float64
	for _, s := range o.Symbols {
		total += s.Weight
	}
	if total <= 0 {
		return 0
	}
	var rtp float64
	for _, s := range o.Symbols {
		p := s.Weight / total
		rtp += p*p*p*s.Triple + 2*p*p*(1-p)*s.Double
	}
	return rtp
}
