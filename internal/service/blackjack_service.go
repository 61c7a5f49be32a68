package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
	"casino-engine/internal/game"
	"casino-engine/internal/rng"
	"casino-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// openHand is a table entry. A resolved hand stays in the table until its
// settlement commits; round is built once so retries reuse its ID.
type openHand struct {
	hand    *game.Hand
	debit   int64 // stake still to be taken at settlement
	round   *domain.GameRound
	settled bool
}

// BlackjackServiceImpl implements ports.BlackjackService.
// Each user has at most one hand in the table.
type BlackjackServiceImpl struct {
	settleEffects
	odds    OddsSource
	rng     rng.Provider
	ledger  ports.LedgerService
	economy ports.EconomyService
	signer  ports.SignatureService
	timeout time.Duration
	now     func() time.Time

	locks *keyedMutex
	mu    sync.Mutex
	hands map[uuid.UUID]*openHand
}

// NewBlackjackService creates a new BlackjackServiceImpl. stats, publisher and hub may be nil.
func NewBlackjackService(
	oddsSrc OddsSource,
	provider rng.Provider,
	ledger ports.LedgerService,
	economy ports.EconomyService,
	signer ports.SignatureService,
	stats ports.StatsRecorder,
	publisher ports.EventPublisher,
	hub ports.Broadcaster,
	bigWinMultiplier float64,
	handTimeout time.Duration,
	log zerolog.Logger,
) *BlackjackServiceImpl {
	return &BlackjackServiceImpl{
		settleEffects: settleEffects{
			stats:     stats,
			publisher: publisher,
			hub:       hub,
			bigWin:    bigWinMultiplier,
			log:       log,
		},
		odds:    oddsSrc,
		rng:     provider,
		ledger:  ledger,
		economy: economy,
		signer:  signer,
		timeout: handTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		locks:   newKeyedMutex(),
		hands:   make(map[uuid.UUID]*openHand),
	}
}

// Deal opens a hand and takes the stake. A natural resolves and settles
// in the same ledger transaction as the stake.
func (s *BlackjackServiceImpl) Deal(ctx context.Context, userID uuid.UUID, currency domain.Currency, bet int64) (*ports.HandView, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if cur := s.get(userID); cur != nil {
		if !cur.hand.Resolved() {
			return nil, apperror.ErrHandAlreadyOpen()
		}
		// a resolved hand whose settlement failed earlier
		if _, err := s.settle(ctx, cur); err != nil {
			return nil, err
		}
	}

	if !currency.Valid() {
		return nil, apperror.ErrInvalidCurrency(string(currency))
	}
	snap := s.odds.Snapshot()
	now := s.now()
	if err := game.ValidateBet(snap, domain.GameBlackjack, bet, snap.ActiveEvent(now)); err != nil {
		return nil, err
	}

	draws, err := s.rng.Draw(game.ShuffleDraws)
	if err != nil {
		s.odds.Disable(domain.GameBlackjack, "randomness source failure")
		s.log.Error().Err(err).Msg("rng failure, blackjack disabled")
		return nil, apperror.ErrFairnessViolation(err)
	}

	hand := game.NewHand(userID, currency, bet, snap.Blackjack, now)
	if err := hand.Deal(draws); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("deal: %w", err))
	}
	entry := &openHand{hand: hand}

	if hand.Resolved() {
		entry.debit = bet
		bal, err := s.settle(ctx, entry)
		if err != nil {
			return nil, err
		}
		return s.view(entry, &bal), nil
	}

	bal, err := s.ledger.Debit(ctx, userID, currency, bet, domain.TxReasonBlackjackBet)
	if err != nil {
		return nil, err
	}
	s.put(userID, entry)
	s.notify(userID, bal)

	s.log.Info().
		Str("hand_id", hand.ID.String()).
		Str("user_id", userID.String()).
		Int64("wager", bet).
		Msg("blackjack hand dealt")
	return s.view(entry, &bal), nil
}

// Hit draws one card for the player.
func (s *BlackjackServiceImpl) Hit(ctx context.Context, userID, handID uuid.UUID) (*ports.HandView, error) {
	return s.act(ctx, userID, handID, func(h *game.Hand) error { return h.Hit() })
}

// Stand ends the player's turn and plays out the dealer.
func (s *BlackjackServiceImpl) Stand(ctx context.Context, userID, handID uuid.UUID) (*ports.HandView, error) {
	return s.act(ctx, userID, handID, func(h *game.Hand) error { return h.Stand() })
}

// Double takes a second stake equal to the wager, then one card and stand.
func (s *BlackjackServiceImpl) Double(ctx context.Context, userID, handID uuid.UUID) (*ports.HandView, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	entry, err := s.active(userID, handID)
	if err != nil {
		return nil, err
	}
	h := entry.hand
	if !h.CanDouble() {
		return nil, apperror.ErrIllegalAction("double")
	}
	if _, err := s.ledger.Debit(ctx, userID, h.Currency, h.Wager, domain.TxReasonBlackjackDouble); err != nil {
		return nil, err
	}
	if err := h.Double(); err != nil {
		return nil, err
	}
	return s.finish(ctx, entry)
}

// Current returns the user's open hand.
func (s *BlackjackServiceImpl) Current(_ context.Context, userID uuid.UUID) (*ports.HandView, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	entry := s.get(userID)
	if entry == nil {
		return nil, apperror.ErrHandNotActive()
	}
	return s.view(entry, nil), nil
}

func (s *BlackjackServiceImpl) act(ctx context.Context, userID, handID uuid.UUID, move func(*game.Hand) error) (*ports.HandView, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	entry, err := s.active(userID, handID)
	if err != nil {
		return nil, err
	}
	if err := move(entry.hand); err != nil {
		return nil, err
	}
	return s.finish(ctx, entry)
}

// finish settles the hand if the last move resolved it.
func (s *BlackjackServiceImpl) finish(ctx context.Context, entry *openHand) (*ports.HandView, error) {
	entry.hand.UpdatedAt = s.now()
	if !entry.hand.Resolved() {
		return s.view(entry, nil), nil
	}
	bal, err := s.settle(ctx, entry)
	if err != nil {
		return nil, err
	}
	return s.view(entry, &bal), nil
}

// active returns the user's hand if it is handID and still in play.
func (s *BlackjackServiceImpl) active(userID, handID uuid.UUID) (*openHand, error) {
	entry := s.get(userID)
	if entry == nil || entry.hand.ID != handID || entry.hand.Resolved() {
		return nil, apperror.ErrHandNotActive()
	}
	return entry, nil
}

// settle credits a resolved hand and records its round. The caller holds
// the user lock. On success the hand leaves the table.
func (s *BlackjackServiceImpl) settle(ctx context.Context, entry *openHand) (domain.Balances, error) {
	h := entry.hand
	if entry.round == nil {
		round, err := s.buildRound(h)
		if err != nil {
			return domain.Balances{}, err
		}
		entry.round = round
	}

	bal, err := s.ledger.SettleRound(ctx, ports.Settlement{
		UserID:   h.UserID,
		Currency: h.Currency,
		Debit:    entry.debit,
		Credit:   entry.round.Payout,
		Reason:   domain.TxReasonRound,
		Round:    entry.round,
	})
	if err != nil {
		// the stake is already taken: keep the hand so the sweeper or next deal retries
		if entry.debit == 0 {
			s.put(h.UserID, entry)
		}
		s.log.Error().Err(err).Str("hand_id", h.ID.String()).Msg("blackjack settlement failed")
		return domain.Balances{}, err
	}
	entry.settled = true
	s.remove(h.UserID, h.ID)
	s.apply(ctx, entry.round, bal)
	return bal, nil
}

func (s *BlackjackServiceImpl) buildRound(h *game.Hand) (*domain.GameRound, error) {
	cut := s.economy.HouseCut(h.Wager, h.Payout)
	pt, _ := game.HandValue(h.Player)
	dt, _ := game.HandValue(h.Dealer)
	detail := map[string]any{
		"hand_id":      h.ID,
		"player":       cardStrings(h.Player),
		"dealer":       cardStrings(h.Dealer),
		"player_total": pt,
		"dealer_total": dt,
		"doubled":      h.Doubled,
	}
	if cut > 0 {
		detail["gross_payout"] = h.Payout
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal detail: %w", err))
	}

	round := &domain.GameRound{
		ID:         uuid.New(),
		UserID:     h.UserID,
		Game:       domain.GameBlackjack,
		Currency:   h.Currency,
		Wager:      h.Wager,
		Draws:      h.Draws,
		Outcome:    h.Outcome,
		IsWin:      h.IsWin(),
		Multiplier: h.Multiplier,
		Payout:     h.Payout - cut,
		HouseCut:   cut,
		Detail:     raw,
		CreatedAt:  s.now(),
	}
	round.Signature = s.signer.Sign(round.CanonicalString())
	return round, nil
}

// Sweep stands every hand idle past the timeout and retries pending
// settlements. It returns the number of hands settled.
func (s *BlackjackServiceImpl) Sweep(ctx context.Context) int {
	s.mu.Lock()
	users := make([]uuid.UUID, 0, len(s.hands))
	for id := range s.hands {
		users = append(users, id)
	}
	s.mu.Unlock()

	settled := 0
	for _, userID := range users {
		if s.sweepOne(ctx, userID) {
			settled++
		}
	}
	return settled
}

func (s *BlackjackServiceImpl) sweepOne(ctx context.Context, userID uuid.UUID) bool {
	unlock := s.locks.Lock(userID)
	defer unlock()

	entry := s.get(userID)
	if entry == nil {
		return false
	}
	h := entry.hand
	if !h.Resolved() {
		if s.timeout <= 0 || s.now().Sub(h.UpdatedAt) < s.timeout {
			return false
		}
		if err := h.Stand(); err != nil {
			s.log.Error().Err(err).Str("hand_id", h.ID.String()).Msg("failed to stand expired hand")
			return false
		}
		s.log.Info().Str("hand_id", h.ID.String()).Msg("expired blackjack hand stood")
	}
	_, err := s.settle(ctx, entry)
	return err == nil
}

// StartSweeper runs Sweep every interval until ctx ends.
func (s *BlackjackServiceImpl) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(ctx); n > 0 {
					s.log.Debug().Int("settled", n).Msg("blackjack sweep")
				}
			}
		}
	}()
}

func (s *BlackjackServiceImpl) get(userID uuid.UUID) *openHand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hands[userID]
}

func (s *BlackjackServiceImpl) put(userID uuid.UUID, entry *openHand) {
	s.mu.Lock()
	s.hands[userID] = entry
	s.mu.Unlock()
}

func (s *BlackjackServiceImpl) remove(userID, handID uuid.UUID) {
	s.mu.Lock()
	if cur, ok := s.hands[userID]; ok && cur.hand.ID == handID {
		delete(s.hands, userID)
	}
	s.mu.Unlock()
}

func (s *BlackjackServiceImpl) view(entry *openHand, bal *domain.Balances) *ports.HandView {
	h := entry.hand
	dealer := h.VisibleDealer()
	pt, _ := game.HandValue(h.Player)
	dt, _ := game.HandValue(dealer)
	v := &ports.HandView{
		ID:          h.ID,
		State:       string(h.State),
		Currency:    h.Currency,
		Wager:       h.Wager,
		Doubled:     h.Doubled,
		Player:      cardStrings(h.Player),
		PlayerTotal: pt,
		Dealer:      cardStrings(dealer),
		DealerTotal: dt,
		CanDouble:   h.CanDouble(),
		Outcome:     h.Outcome,
		Balances:    bal,
	}
	if entry.settled {
		v.Payout = entry.round.Payout
		id := entry.round.ID
		v.RoundID = &id
	}
	return v
}

func cardStrings(cards []game.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
