package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Game names a supported game.
type Game string

const (
	GameSlots     Game = "slots"
	GameCoinflip  Game = "coinflip"
	GameRoulette  Game = "roulette"
	GamePlinko    Game = "plinko"
	GameBlackjack Game = "blackjack"
)

// Games lists every supported game in display order.
var Games = []Game{GameSlots, GameCoinflip, GameRoulette, GamePlinko, GameBlackjack}

// ParseGame maps a route segment to a Game.
func ParseGame(s string) (Game, bool) {
	g := Game(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Games {
		if g == known {
			return g, true
		}
	}
	return "", false
}

// GameRound is the immutable audit record of one resolved round.
// Repositories only ever insert rounds.
type GameRound struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Game         Game            `json:"game"`
	Currency     Currency        `json:"currency"`
	Wager        int64           `json:"wager"`
	Choice       json.RawMessage `json:"choice,omitempty"`
	Draws        []float64       `json:"draws"`
	Outcome      string          `json:"outcome"`
	IsWin        bool            `json:"is_win"`
	Multiplier   float64         `json:"multiplier"`
	Payout       int64           `json:"payout"`
	HouseCut     int64           `json:"house_cut"`
	Detail       json.RawMessage `json:"detail,omitempty"`
	CashAfter    int64           `json:"cash_after"`
	CreditsAfter int64           `json:"credits_after"`
	Signature    string          `json:"signature"`
	CreatedAt    time.Time       `json:"created_at"`
}

// CanonicalString is the payload signed to make a round record tamper-evident.
// Format: ID|USER|GAME|CURRENCY|WAGER|DRAWS|OUTCOME|PAYOUT|HOUSECUT|CREATED_AT
func (r *GameRound) CanonicalString() string {
	draws := make([]string, len(r.Draws))
	for i, d := range r.Draws {
		draws[i] = strconv.FormatFloat(d, 'g', -1, 64)
	}
	return fmt.Sprintf("%s|%s|%s|%s|%d|%s|%s|%d|%d|%d",
		r.ID, r.UserID, r.Game, r.Currency, r.Wager,
		strings.Join(draws, ","), r.Outcome, r.Payout, r.HouseCut,
		r.CreatedAt.UnixNano(),
	)
}
