package game

import (
	"fmt"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/rng"
	"casino-engine/pkg/apperror"

	"github.com/google/uuid"
)

// DeckSize is a single 52-card deck, reshuffled for every hand.
const DeckSize = 52

// ShuffleDraws is the number of draws a hand consumes at deal.
const ShuffleDraws = DeckSize - 1

var suits = [4]string{"♠", "♥", "♦", "♣"}
var ranks = [14]string{"", "A", "2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K"}

// Card is a rank (1=ace .. 13=king) and suit index.
type Card struct {
	Rank int `json:"rank"`
	Suit int `json:"suit"`
}

func (c Card) String() string {
	return ranks[c.Rank] + suits[c.Suit]
}

func (c Card) value() int {
	if c.Rank > 10 {
		return 10
	}
	return c.Rank
}

// HandValue totals cards, counting one ace as eleven when that does not bust.
func HandValue(cards []Card) (total int, soft bool) {
	aces := 0
	for _, c := range cards {
		total += c.value()
		if c.Rank == 1 {
			aces++
		}
	}
	if aces > 0 && total+10 <= 21 {
		return total + 10, true
	}
	return total, false
}

func isNatural(cards []Card) bool {
	t, _ := HandValue(cards)
	return len(cards) == 2 && t == 21
}

// HandState is the position of a hand in its lifecycle.
type HandState string

const (
	HandAwaitingDeal HandState = "awaiting_deal"
	HandPlayerTurn   HandState = "player_turn"
	HandDealerTurn   HandState = "dealer_turn"
	HandResolved     HandState = "resolved"
)

// Hand is one blackjack hand. Transitions only move forward:
// AwaitingDeal -> PlayerTurn -> DealerTurn -> Resolved, with naturals and
// busts jumping straight to Resolved.
type Hand struct {
	ID         uuid.UUID            `json:"id"`
	UserID     uuid.UUID            `json:"user_id"`
	Currency   domain.Currency      `json:"currency"`
	Wager      int64                `json:"wager"`
	Doubled    bool                 `json:"doubled"`
	State      HandState            `json:"state"`
	Player     []Card               `json:"player"`
	Dealer     []Card               `json:"dealer"`
	Outcome    string               `json:"outcome,omitempty"`
	Multiplier float64              `json:"multiplier"`
	Payout     int64                `json:"payout"`
	Draws      []float64            `json:"-"`
	Odds       domain.BlackjackOdds `json:"-"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`

	deck []Card
	next int
}

// NewHand opens a hand awaiting its deal.
func NewHand(userID uuid.UUID, currency domain.Currency, wager int64, odds domain.BlackjackOdds, now time.Time) *Hand {
	return &Hand{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  currency,
		Wager:     wager,
		State:     HandAwaitingDeal,
		Odds:      odds,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Deal shuffles a fresh deck with the given draws and deals player,
// dealer, player, dealer. Naturals resolve immediately.
func (h *Hand) Deal(draws []float64) error {
	if h.State != HandAwaitingDeal {
		return apperror.ErrIllegalAction("deal")
	}
	if len(draws) < ShuffleDraws {
		return fmt.Errorf("deal needs %d draws, got %d", ShuffleDraws, len(draws))
	}
	deck := make([]Card, 0, DeckSize)
	for s := 0; s < 4; s++ {
		for r := 1; r <= 13; r++ {
			deck = append(deck, Card{Rank: r, Suit: s})
		}
	}
	if err := rng.Shuffle(len(deck), draws, func(i, j int) { deck[i], deck[j] = deck[j], deck[i] }); err != nil {
		return err
	}
	h.Draws = append([]float64(nil), draws[:ShuffleDraws]...)
	h.dealFrom(deck)
	return nil
}

func (h *Hand) dealFrom(deck []Card) {
	h.deck = deck
	h.next = 0
	h.Player = []Card{h.draw()}
	h.Dealer = []Card{h.draw()}
	h.Player = append(h.Player, h.draw())
	h.Dealer = append(h.Dealer, h.draw())
	h.State = HandPlayerTurn

	pn, dn := isNatural(h.Player), isNatural(h.Dealer)
	switch {
	case pn && dn:
		h.resolve("push", h.Odds.PushPayout)
	case pn:
		h.resolve("blackjack", h.Odds.NaturalPayout)
	case dn:
		h.resolve("dealer_blackjack", 0)
	}
}

// Hit draws a card for the player. Bust resolves as a loss before the
// dealer plays; reaching 21 stands automatically.
func (h *Hand) Hit() error {
	if h.State != HandPlayerTurn {
		return apperror.ErrIllegalAction("hit")
	}
	h.Player = append(h.Player, h.draw())
	total, _ := HandValue(h.Player)
	switch {
	case total > 21:
		h.resolve("bust", 0)
	case total == 21:
		h.playDealer()
	}
	return nil
}

// Stand ends the player's turn.
func (h *Hand) Stand() error {
	if h.State != HandPlayerTurn {
		return apperror.ErrIllegalAction("stand")
	}
	h.playDealer()
	return nil
}

// CanDouble reports whether Double is legal right now.
func (h *Hand) CanDouble() bool {
	return h.State == HandPlayerTurn && len(h.Player) == 2 && !h.Doubled
}

// Double doubles the wager, takes exactly one card and stands.
// The caller debits the additional stake before calling.
func (h *Hand) Double() error {
	if !h.CanDouble() {
		return apperror.ErrIllegalAction("double")
	}
	h.Wager *= 2
	h.Doubled = true
	h.Player = append(h.Player, h.draw())
	if total, _ := HandValue(h.Player); total > 21 {
		h.resolve("bust", 0)
		return nil
	}
	h.playDealer()
	return nil
}

// Resolved reports whether the hand has reached its terminal state.
func (h *Hand) Resolved() bool { return h.State == HandResolved }

// VisibleDealer hides the hole card until the dealer plays.
func (h *Hand) VisibleDealer() []Card {
	if h.State == HandPlayerTurn && len(h.Dealer) > 1 {
		return h.Dealer[:1]
	}
	return h.Dealer
}

func (h *Hand) playDealer() {
	h.State = HandDealerTurn
	standOn := h.Odds.DealerStandsOn
	if standOn == 0 {
		standOn = 17
	}
	for {
		t, _ := HandValue(h.Dealer)
		if t >= standOn {
			break
		}
		h.Dealer = append(h.Dealer, h.draw())
	}

	pt, _ := HandValue(h.Player)
	dt, _ := HandValue(h.Dealer)
	switch {
	case dt > 21:
		h.resolve("dealer_bust", h.Odds.WinPayout)
	case pt > dt:
		h.resolve("win", h.Odds.WinPayout)
	case pt == dt:
		h.resolve("push", h.Odds.PushPayout)
	default:
		h.resolve("lose", 0)
	}
}

func (h *Hand) resolve(outcome string, mult float64) {
	h.State = HandResolved
	h.Outcome = outcome
	h.Multiplier = mult
	h.Payout = domain.ApplyMultiplier(h.Wager, mult)
}

func (h *Hand) draw() Card {
	c := h.deck[h.next]
	h.next++
	return c
}

// IsWin reports a net profit on the hand.
func (h *Hand) IsWin() bool {
	return h.Resolved() && h.Payout > h.Wager
}
