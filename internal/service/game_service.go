package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
	"casino-engine/internal/game"
	"casino-engine/internal/rng"
	"casino-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OddsSource is the part of the odds registry the game services need.
type OddsSource interface {
	Snapshot() *domain.OddsSnapshot
	Disable(g domain.Game, reason string)
}

// BigWin is the payload announced to every connection.
type BigWin struct {
	UserID     uuid.UUID   `json:"user_id"`
	Game       domain.Game `json:"game"`
	Wager      int64       `json:"wager"`
	Payout     int64       `json:"payout"`
	Multiplier float64     `json:"multiplier"`
}

// settleEffects are the best-effort side effects of a committed round,
// shared by the single-shot and blackjack services.
type settleEffects struct {
	stats     ports.StatsRecorder  // optional
	publisher ports.EventPublisher // optional
	hub       ports.Broadcaster    // optional
	bigWin    float64
	log       zerolog.Logger
}

// GameServiceImpl implements ports.GameService.
type GameServiceImpl struct {
	settleEffects
	odds      OddsSource
	resolvers game.Registry
	rng       rng.Provider
	ledger    ports.LedgerService
	economy   ports.EconomyService
	signer    ports.SignatureService
	now       func() time.Time
}

// NewGameService creates a new GameServiceImpl. stats, publisher and hub may be nil.
func NewGameService(
	oddsSrc OddsSource,
	resolvers game.Registry,
	provider rng.Provider,
	ledger ports.LedgerService,
	economy ports.EconomyService,
	signer ports.SignatureService,
	stats ports.StatsRecorder,
	publisher ports.EventPublisher,
	hub ports.Broadcaster,
	bigWinMultiplier float64,
	log zerolog.Logger,
) *GameServiceImpl {
	return &GameServiceImpl{
		settleEffects: settleEffects{
			stats:     stats,
			publisher: publisher,
			hub:       hub,
			bigWin:    bigWinMultiplier,
			log:       log,
		},
		odds:      oddsSrc,
		resolvers: resolvers,
		rng:       provider,
		ledger:    ledger,
		economy:   economy,
		signer:    signer,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Play resolves and settles one single-shot round. Every validation runs
// before the ledger is touched; once SettleRound commits the round is final
// and later notification failures are only logged.
func (s *GameServiceImpl) Play(ctx context.Context, req ports.PlayRequest) (*ports.PlayResult, error) {
	snap := s.odds.Snapshot()
	now := s.now()
	ev := snap.ActiveEvent(now)

	resolver, ok := s.resolvers[req.Game]
	if !ok {
		if req.Game == domain.GameBlackjack {
			return nil, apperror.Validation("blackjack is played one hand at a time")
		}
		return nil, apperror.ErrUnknownGame(string(req.Game))
	}
	if !req.Currency.Valid() {
		return nil, apperror.ErrInvalidCurrency(string(req.Currency))
	}
	if err := game.ValidateBet(snap, req.Game, req.Bet, ev); err != nil {
		return nil, err
	}
	need, err := resolver.Validate(snap, req.Bet, req.Choice)
	if err != nil {
		return nil, err
	}

	extra := game.EventDraws(ev, req.Game)
	draws, err := s.rng.Draw(need + extra)
	if err != nil {
		s.odds.Disable(req.Game, "randomness source failure")
		s.log.Error().Err(err).Str("game", string(req.Game)).Msg("rng failure, game disabled")
		return nil, apperror.ErrFairnessViolation(err)
	}

	res, err := resolver.Resolve(req.Bet, req.Choice, snap, draws[:need])
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve %s: %w", req.Game, err))
	}
	if extra > 0 {
		res = game.ApplyEvent(res, req.Bet, ev, draws[need])
	}

	cut := s.economy.HouseCut(req.Bet, res.Payout)
	if res.Detail == nil {
		res.Detail = map[string]any{}
	}
	if cut > 0 {
		res.Detail["gross_payout"] = res.Payout
	}
	credit := res.Payout - cut

	detail, err := json.Marshal(res.Detail)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal detail: %w", err))
	}

	round := &domain.GameRound{
		ID:         uuid.New(),
		UserID:     req.UserID,
		Game:       req.Game,
		Currency:   req.Currency,
		Wager:      req.Bet,
		Choice:     req.Choice,
		Draws:      draws,
		Outcome:    res.Outcome,
		IsWin:      res.IsWin,
		Multiplier: res.Multiplier,
		Payout:     credit,
		HouseCut:   cut,
		Detail:     detail,
		CreatedAt:  now,
	}
	round.Signature = s.signer.Sign(round.CanonicalString())

	bal, err := s.ledger.SettleRound(ctx, ports.Settlement{
		UserID:   req.UserID,
		Currency: req.Currency,
		Debit:    req.Bet,
		Credit:   credit,
		Reason:   domain.TxReasonRound,
		Round:    round,
	})
	if err != nil {
		return nil, err
	}

	s.apply(ctx, round, bal)

	out := &ports.PlayResult{Round: round, Balances: bal}
	if ev != nil {
		out.Event = ev.Name
	}
	return out, nil
}

// apply runs after the round has committed; failures are only logged.
func (s settleEffects) apply(ctx context.Context, round *domain.GameRound, bal domain.Balances) {
	if s.stats != nil {
		if err := s.stats.Record(ctx, round.Game, round.Wager, round.Payout); err != nil {
			s.log.Warn().Err(err).Str("round_id", round.ID.String()).Msg("failed to record rtp stats")
		}
	}
	if s.hub != nil {
		s.hub.NotifyUser(round.UserID, MsgBalanceUpdate, bal)
		if round.IsWin && s.bigWin > 0 && round.Multiplier >= s.bigWin {
			s.hub.NotifyAll(MsgBigWin, BigWin{
				UserID:     round.UserID,
				Game:       round.Game,
				Wager:      round.Wager,
				Payout:     round.Payout,
				Multiplier: round.Multiplier,
			})
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRound(context.WithoutCancel(ctx), round); err != nil {
			s.log.Warn().Err(err).Str("round_id", round.ID.String()).Msg("failed to publish round event")
		}
	}

	s.log.Info().
		Str("round_id", round.ID.String()).
		Str("user_id", round.UserID.String()).
		Str("game", string(round.Game)).
		Int64("wager", round.Wager).
		Int64("payout", round.Payout).
		Str("outcome", round.Outcome).
		Msg("round settled")
}

func (s settleEffects) notify(userID uuid.UUID, bal domain.Balances) {
	if s.hub != nil {
		s.hub.NotifyUser(userID, MsgBalanceUpdate, bal)
	}
}

// Stats returns observed RTP counters for every game.
func (s *GameServiceImpl) Stats(ctx context.Context) ([]ports.GameStats, error) {
	out := make([]ports.GameStats, 0, len(domain.Games))
	for _, g := range domain.Games {
		if s.stats == nil {
			out = append(out, ports.GameStats{Game: g})
			continue
		}
		st, err := s.stats.Stats(ctx, g)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("stats %s: %w", g, err))
		}
		out = append(out, st)
	}
	return out, nil
}
