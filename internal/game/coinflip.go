package game

import (
	"encoding/json"
	"strings"

	"casino-engine/internal/core/domain"
	"casino-engine/pkg/apperror"
)

type coinflipChoice struct {
	Side string `json:"side"`
}

// Coinflip pays the configured multiplier on a correct call.
type Coinflip struct{}

func (Coinflip) Game() domain.Game { return domain.GameCoinflip }

func (Coinflip) parse(raw json.RawMessage) (string, error) {
	var c coinflipChoice
	if err := decodeChoice(raw, &c); err != nil {
		return "", err
	}
	side := strings.ToLower(strings.TrimSpace(c.Side))
	if side != "heads" && side != "tails" {
		return "", apperror.Validation("side must be heads or tails")
	}
	return side, nil
}

func (c Coinflip) Validate(_ *domain.OddsSnapshot, _ int64, choice json.RawMessage) (int, error) {
	if _, err := c.parse(choice); err != nil {
		return 0, err
	}
	return 1, nil
}

func (c Coinflip) Resolve(bet int64, choice json.RawMessage, odds *domain.OddsSnapshot, draws []float64) (Result, error) {
	side, err := c.parse(choice)
	if err != nil {
		return Result{}, err
	}
	if err := requireDraws(draws, 1); err != nil {
		return Result{}, err
	}

	landed := "tails"
	if draws[0] < odds.Coinflip.HeadsWeight {
		landed = "heads"
	}

	res := Result{
		Outcome: landed,
		Detail:  map[string]any{"guess": side, "landed": landed},
	}
	if landed == side {
		res.Multiplier = odds.Coinflip.Multiplier
		res.Payout = domain.ApplyMultiplier(bet, res.Multiplier)
		res.IsWin = res.Payout > bet
	}
	return res, nil
}
