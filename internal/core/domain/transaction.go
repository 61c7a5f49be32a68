package domain

import (
	"time"

	"github.com/google/uuid"
)

// TxReason labels why a ledger entry was written.
type TxReason string

const (
	TxReasonRound           TxReason = "ROUND"
	TxReasonWager           TxReason = "WAGER"
	TxReasonPayout          TxReason = "PAYOUT"
	TxReasonExchange        TxReason = "EXCHANGE"
	TxReasonDailyBonus      TxReason = "DAILY_BONUS"
	TxReasonBlackjackBet    TxReason = "BLACKJACK_BET"
	TxReasonBlackjackDouble TxReason = "BLACKJACK_DOUBLE"
)

// Transaction is an append-only ledger entry. Deltas are signed minor units.
type Transaction struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	CashDelta    int64      `json:"cash_delta"`
	CreditsDelta int64      `json:"credits_delta"`
	CashAfter    int64      `json:"cash_after"`
	CreditsAfter int64      `json:"credits_after"`
	Reason       TxReason   `json:"reason"`
	RoundID      *uuid.UUID `json:"round_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewTransaction builds a ledger entry describing the change from before to after.
func NewTransaction(userID uuid.UUID, before, after Balances, reason TxReason, roundID *uuid.UUID, at time.Time) *Transaction {
	return &Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		CashDelta:    after.Cash - before.Cash,
		CreditsDelta: after.Credits - before.Credits,
		CashAfter:    after.Cash,
		CreditsAfter: after.Credits,
		Reason:       reason,
		RoundID:      roundID,
		CreatedAt:    at,
	}
}
