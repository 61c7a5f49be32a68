package game

import (
	"encoding/json"
	"fmt"
	"sort"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/rng"
	"casino-engine/pkg/apperror"
)

const roulettePockets = 37

var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

// RouletteBet is a single stake on the layout.
// Inside bets name their pockets in Numbers; dozen and column use Value 1-3.
type RouletteBet struct {
	Type    string `json:"type"`
	Numbers []int  `json:"numbers,omitempty"`
	Value   int    `json:"value,omitempty"`
	Amount  int64  `json:"amount"`
}

type rouletteChoice struct {
	Bets []RouletteBet `json:"bets"`
}

// Roulette is a single-zero wheel scored against every bet placed on one spin.
type Roulette struct{}

func (Roulette) Game() domain.Game { return domain.GameRoulette }

func (Roulette) parse(odds *domain.OddsSnapshot, bet int64, raw json.RawMessage) ([]RouletteBet, error) {
	var c rouletteChoice
	if err := decodeChoice(raw, &c); err != nil {
		return nil, err
	}
	if len(c.Bets) == 0 {
		return nil, apperror.Validation("at least one roulette bet is required")
	}
	var sum int64
	for i := range c.Bets {
		b := &c.Bets[i]
		if _, ok := odds.Roulette.Payouts[b.Type]; !ok {
			return nil, apperror.Validation(fmt.Sprintf("unknown bet type %q", b.Type))
		}
		if b.Amount <= 0 {
			return nil, apperror.ErrInvalidAmount()
		}
		if err := validateLayout(b); err != nil {
			return nil, err
		}
		sum += b.Amount
	}
	if sum != bet {
		return nil, apperror.Validation(fmt.Sprintf("bet amounts sum to %d, expected %d", sum, bet))
	}
	return c.Bets, nil
}

func (r Roulette) Validate(odds *domain.OddsSnapshot, bet int64, choice json.RawMessage) (int, error) {
	if _, err := r.parse(odds, bet, choice); err != nil {
		return 0, err
	}
	return 1, nil
}

func (r Roulette) Resolve(bet int64, choice json.RawMessage, odds *domain.OddsSnapshot, draws []float64) (Result, error) {
	bets, err := r.parse(odds, bet, choice)
	if err != nil {
		return Result{}, err
	}
	if err := requireDraws(draws, 1); err != nil {
		return Result{}, err
	}

	pocket := rng.IntN(draws[0], roulettePockets)
	var payout int64
	scored := make([]map[string]any, 0, len(bets))
	for _, b := range bets {
		var ret int64
		won := Covers(b, pocket)
		if won {
			ret = domain.ApplyMultiplier(b.Amount, odds.Roulette.Payouts[b.Type])
		}
		payout += ret
		scored = append(scored, map[string]any{
			"type":   b.Type,
			"amount": b.Amount,
			"won":    won,
			"return": ret,
		})
	}

	var mult float64
	if bet > 0 {
		mult = float64(payout) / float64(bet)
	}
	return Result{
		IsWin:      payout > bet,
		Multiplier: mult,
		Payout:     payout,
		Outcome:    fmt.Sprintf("%d_%s", pocket, PocketColor(pocket)),
		Detail: map[string]any{
			"pocket": pocket,
			"color":  PocketColor(pocket),
			"bets":   scored,
		},
	}, nil
}

// PocketColor is red, black or green.
func PocketColor(n int) string {
	switch {
	case n == 0:
		return "green"
	case redNumbers[n]:
		return "red"
	default:
		return "black"
	}
}

// Covers reports whether bet b wins when the ball lands on pocket.
// Zero loses every outside bet.
func Covers(b RouletteBet, pocket int) bool {
	switch b.Type {
	case "straight", "split", "street", "corner", "line":
		for _, n := range b.Numbers {
			if n == pocket {
				return true
			}
		}
		return false
	}
	if pocket == 0 {
		return false
	}
	switch b.Type {
	case "dozen":
		return (pocket-1)/12+1 == b.Value
	case "column":
		return pocket%3 == b.Value%3
	case "red":
		return redNumbers[pocket]
	case "black":
		return !redNumbers[pocket]
	case "odd":
		return pocket%2 == 1
	case "even":
		return pocket%2 == 0
	case "low":
		return pocket <= 18
	case "high":
		return pocket >= 19
	}
	return false
}

// coverage is how many pockets each bet type covers.
var coverage = map[string]int{
	"straight": 1, "split": 2, "street": 3, "corner": 4, "line": 6,
	"dozen": 12, "column": 12,
	"red": 18, "black": 18, "odd": 18, "even": 18, "low": 18, "high": 18,
}

// RouletteRTP returns the theoretical return of each configured bet type.
func RouletteRTP(o domain.RouletteOdds) map[string]float64 {
	out := make(map[string]float64, len(o.Payouts))
	for t, m := range o.Payouts {
		out[t] = m * float64(coverage[t]) / roulettePockets
	}
	return out
}

// KnownRouletteBet reports whether t is a bet type the wheel can score.
func KnownRouletteBet(t string) bool {
	_, ok := coverage[t]
	return ok
}

func validateLayout(b *RouletteBet) error {
	nums := append([]int(nil), b.Numbers...)
	sort.Ints(nums)
	for _, n := range nums {
		if n < 0 || n > 36 {
			return apperror.Validation(fmt.Sprintf("pocket %d out of range", n))
		}
	}
	bad := apperror.Validation(fmt.Sprintf("invalid %s numbers %v", b.Type, b.Numbers))

	switch b.Type {
	case "straight":
		if len(nums) != 1 {
			return bad
		}
	case "split":
		if len(nums) != 2 {
			return bad
		}
		a, c := nums[0], nums[1]
		switch {
		case a == 0 && c >= 1 && c <= 3:
		case a > 0 && c-a == 3:
		case a > 0 && c-a == 1 && a%3 != 0:
		default:
			return bad
		}
	case "street":
		if len(nums) != 3 || nums[0]%3 != 1 || nums[1] != nums[0]+1 || nums[2] != nums[0]+2 {
			return bad
		}
	case "corner":
		if len(nums) != 4 || nums[0] == 0 || nums[0]%3 == 0 ||
			nums[1] != nums[0]+1 || nums[2] != nums[0]+3 || nums[3] != nums[0]+4 {
			return bad
		}
	case "line":
		if len(nums) != 6 || nums[0]%3 != 1 {
			return bad
		}
		for i := 1; i < 6; i++ {
			if nums[i] != nums[0]+i {
				return bad
			}
		}
	case "dozen", "column":
		if b.Value < 1 || b.Value > 3 || len(nums) != 0 {
			return apperror.Validation(fmt.Sprintf("%s value must be 1, 2 or 3", b.Type))
		}
	default:
		if len(nums) != 0 {
			return bad
		}
	}
	return nil
}
