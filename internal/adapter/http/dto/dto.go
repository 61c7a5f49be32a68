package dto

import (
	"encoding/json"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
)

// PlayRequest is the request body for a single-shot game.
type PlayRequest struct {
	BetAmount int64           `json:"bet_amount" binding:"required,gt=0"`
	Currency  string          `json:"currency" binding:"required,currency"`
	Choice    json.RawMessage `json:"choice,omitempty"`
}

// DealRequest opens a blackjack hand.
type DealRequest struct {
	BetAmount int64  `json:"bet_amount" binding:"required,gt=0"`
	Currency  string `json:"currency" binding:"required,currency"`
}

// ExchangeRequest converts between cash and credits.
type ExchangeRequest struct {
	From   string `json:"from" binding:"required,currency"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// PlayResponse is the settled round returned to the player.
type PlayResponse struct {
	RoundID    string          `json:"round_id"`
	Game       string          `json:"game"`
	Outcome    string          `json:"outcome"`
	IsWin      bool            `json:"is_win"`
	Multiplier float64         `json:"multiplier"`
	Wager      int64           `json:"wager"`
	Payout     int64           `json:"payout"`
	HouseCut   int64           `json:"house_cut"`
	Balance    domain.Balances `json:"balance"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Event      string          `json:"event,omitempty"`
	Signature  string          `json:"signature"`
}

// NewPlayResponse maps a service result.
func NewPlayResponse(res *ports.PlayResult) PlayResponse {
	r := res.Round
	return PlayResponse{
		RoundID:    r.ID.String(),
		Game:       string(r.Game),
		Outcome:    r.Outcome,
		IsWin:      r.IsWin,
		Multiplier: r.Multiplier,
		Wager:      r.Wager,
		Payout:     r.Payout,
		HouseCut:   r.HouseCut,
		Balance:    res.Balances,
		Detail:     r.Detail,
		Event:      res.Event,
		Signature:  r.Signature,
	}
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	Cash           int64      `json:"cash"`
	Credits        int64      `json:"credits"`
	NextDailyBonus *time.Time `json:"next_daily_bonus,omitempty"`
}

// TransactionResponse is one ledger entry.
type TransactionResponse struct {
	ID           string  `json:"id"`
	Reason       string  `json:"reason"`
	CashDelta    int64   `json:"cash_delta"`
	CreditsDelta int64   `json:"credits_delta"`
	CashAfter    int64   `json:"cash_after"`
	CreditsAfter int64   `json:"credits_after"`
	RoundID      *string `json:"round_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// NewTransactionResponse maps a ledger entry.
func NewTransactionResponse(tx domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:           tx.ID.String(),
		Reason:       string(tx.Reason),
		CashDelta:    tx.CashDelta,
		CreditsDelta: tx.CreditsDelta,
		CashAfter:    tx.CashAfter,
		CreditsAfter: tx.CreditsAfter,
		CreatedAt:    tx.CreatedAt.UTC().Format(time.RFC3339),
	}
	if tx.RoundID != nil {
		s := tx.RoundID.String()
		resp.RoundID = &s
	}
	return resp
}

// TransactionListResponse wraps the newest-first history.
type TransactionListResponse struct {
	Items []TransactionResponse `json:"items"`
	Count int                   `json:"count"`
}

// RateResponse is the live exchange rate with its band.
type RateResponse struct {
	Rate      float64 `json:"rate"`
	Base      float64 `json:"base"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	UpdatedAt string  `json:"updated_at"`
}

// NewRateResponse maps an exchange rate.
func NewRateResponse(r domain.ExchangeRate) RateResponse {
	low, high := r.Bounds()
	return RateResponse{
		Rate:      r.Current,
		Base:      r.Base,
		Low:       domain.RoundRate(low),
		High:      domain.RoundRate(high),
		UpdatedAt: r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// GameStatsResponse is the observed return of one game.
type GameStatsResponse struct {
	Game    string  `json:"game"`
	Rounds  int64   `json:"rounds"`
	Wagered int64   `json:"wagered"`
	Paid    int64   `json:"paid"`
	RTP     float64 `json:"rtp"`
}

// NewGameStatsResponse maps per-game counters.
func NewGameStatsResponse(stats []ports.GameStats) []GameStatsResponse {
	out := make([]GameStatsResponse, len(stats))
	for i, s := range stats {
		out[i] = GameStatsResponse{
			Game:    string(s.Game),
			Rounds:  s.Rounds,
			Wagered: s.Wagered,
			Paid:    s.Paid,
			RTP:     s.RTP(),
		}
	}
	return out
}

// OddsResponse is the active odds snapshot plus any running event.
type OddsResponse struct {
	*domain.OddsSnapshot
	ActiveEvent *domain.TimedEvent `json:"active_event,omitempty"`
}
