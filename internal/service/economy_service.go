package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
	"casino-engine/internal/rng"
	"casino-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub message kinds pushed by the services.
const (
	MsgBalanceUpdate = "balance_update"
	MsgBigWin        = "big_win"
	MsgRateUpdate    = "rate_update"
)

// EconomyConfig holds the exchange, bonus and house-cut parameters.
// Amounts are minor units.
type EconomyConfig struct {
	BaseRate          float64
	FluctuationRange  float64
	RateMaxStep       float64
	PenaltyStep       float64
	PenaltyCap        float64
	PenaltyHalfLife   time.Duration
	DailyBonus        int64
	DailyCash         int64
	BonusCooldown     time.Duration
	HouseCutPercent   float64
	HouseCutThreshold int64
}

// EconomyServiceImpl implements ports.EconomyService.
type EconomyServiceImpl struct {
	ledger ports.LedgerService
	rates  ports.RateStore
	hub    ports.Broadcaster
	rng    rng.Provider
	cfg    EconomyConfig
	now    func() time.Time
	log    zerolog.Logger

	mu   sync.RWMutex
	rate domain.ExchangeRate
}

// NewEconomyService creates a new EconomyServiceImpl starting at the base rate.
// rates and hub may be nil.
func NewEconomyService(
	ledger ports.LedgerService,
	rates ports.RateStore,
	hub ports.Broadcaster,
	provider rng.Provider,
	cfg EconomyConfig,
	log zerolog.Logger,
) *EconomyServiceImpl {
	now := func() time.Time { return time.Now().UTC() }
	return &EconomyServiceImpl{
		ledger: ledger,
		rates:  rates,
		hub:    hub,
		rng:    provider,
		cfg:    cfg,
		now:    now,
		log:    log,
		rate: domain.ExchangeRate{
			Current:          cfg.BaseRate,
			Base:             cfg.BaseRate,
			FluctuationRange: cfg.FluctuationRange,
			UpdatedAt:        now(),
		},
	}
}

// Restore resumes the rate walk from the rate store. A stored rate for a
// different base is ignored; one outside the current band is clamped.
func (s *EconomyServiceImpl) Restore(ctx context.Context) {
	if s.rates == nil {
		return
	}
	stored, err := s.rates.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to load stored exchange rate")
		return
	}
	if stored == nil || stored.Base != s.cfg.BaseRate {
		return
	}
	s.mu.Lock()
	s.rate.Current = s.rate.Clamp(stored.Current)
	s.rate.UpdatedAt = stored.UpdatedAt
	s.mu.Unlock()
	s.log.Info().Float64("rate", stored.Current).Msg("exchange rate restored")
}

// CurrentRate returns the live market rate (credits per cash unit).
func (s *EconomyServiceImpl) CurrentRate() domain.ExchangeRate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

// Exchange converts amount of from into the other currency. Frequent
// conversions worsen the applied rate; the penalty decays with half-life.
func (s *EconomyServiceImpl) Exchange(ctx context.Context, userID uuid.UUID, from domain.Currency, amount int64) (*domain.ExchangeResult, error) {
	if !from.Valid() {
		return nil, apperror.ErrInvalidCurrency(string(from))
	}
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	market := s.CurrentRate().Current
	res := &domain.ExchangeResult{From: from, To: from.Other(), Amount: amount, MarketRate: market}

	u, err := s.ledger.Mutate(ctx, userID, domain.TxReasonExchange, func(u *domain.User, now time.Time) error {
		if u.Balance(from) < amount {
			return apperror.ErrInsufficientFunds()
		}
		pressure := s.decayedPressure(u, now)
		penalty := math.Min(s.cfg.PenaltyCap, s.cfg.PenaltyStep*pressure)

		// the penalty always shrinks what the user receives
		applied := market * (1 - penalty)
		if from == domain.CurrencyCredits {
			applied = market / (1 - penalty)
		}
		applied = domain.RoundRate(applied)
		received := domain.Convert(amount, from, applied)
		if received <= 0 {
			return apperror.Validation("amount too small to convert")
		}

		u.Adjust(from, -amount)
		u.Adjust(from.Other(), received)
		u.ExchangePressure = pressure + 1
		u.LastExchange = &now

		res.Penalty = penalty
		res.AppliedRate = applied
		res.Received = received
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Balances = u.Balances()

	s.log.Info().
		Str("user_id", userID.String()).
		Str("from", string(from)).
		Int64("amount", amount).
		Int64("received", res.Received).
		Float64("penalty", res.Penalty).
		Msg("currency exchanged")
	s.notifyBalance(userID, res.Balances)
	return res, nil
}

func (s *EconomyServiceImpl) decayedPressure(u *domain.User, now time.Time) float64 {
	if u.LastExchange == nil || u.ExchangePressure <= 0 {
		return 0
	}
	if s.cfg.PenaltyHalfLife <= 0 {
		return u.ExchangePressure
	}
	elapsed := now.Sub(*u.LastExchange)
	if elapsed <= 0 {
		return u.ExchangePressure
	}
	return u.ExchangePressure * math.Pow(0.5, float64(elapsed)/float64(s.cfg.PenaltyHalfLife))
}

// ClaimDailyBonus credits the daily bonus (credits and cash) once per cooldown.
func (s *EconomyServiceImpl) ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (domain.Balances, error) {
	u, err := s.ledger.Mutate(ctx, userID, domain.TxReasonDailyBonus, func(u *domain.User, now time.Time) error {
		if next := u.BonusAvailableAt(s.cfg.BonusCooldown); now.Before(next) {
			return apperror.ErrCooldownActive(next.Sub(now))
		}
		u.Adjust(domain.CurrencyCredits, s.cfg.DailyBonus)
		u.Adjust(domain.CurrencyCash, s.cfg.DailyCash)
		u.LastDailyBonus = &now
		return nil
	})
	if err != nil {
		return domain.Balances{}, err
	}
	s.log.Info().Str("user_id", userID.String()).Msg("daily bonus claimed")
	s.notifyBalance(userID, u.Balances())
	return u.Balances(), nil
}

// HouseCut is the share of net winnings withheld when the gross payout
// exceeds the threshold.
func (s *EconomyServiceImpl) HouseCut(wager, payout int64) int64 {
	if s.cfg.HouseCutPercent <= 0 || payout <= s.cfg.HouseCutThreshold || payout <= wager {
		return 0
	}
	return domain.PercentOf(payout-wager, s.cfg.HouseCutPercent)
}

// Tick advances the rate random walk by one step and broadcasts it.
func (s *EconomyServiceImpl) Tick(ctx context.Context) (domain.ExchangeRate, error) {
	draws, err := s.rng.Draw(1)
	if err != nil {
		return s.CurrentRate(), apperror.ErrFairnessViolation(fmt.Errorf("rate tick: %w", err))
	}

	s.mu.Lock()
	step := s.rate.Base * s.cfg.RateMaxStep * (2*draws[0] - 1)
	s.rate.Current = domain.RoundRate(s.rate.Clamp(s.rate.Current + step))
	s.rate.UpdatedAt = s.now()
	rate := s.rate
	s.mu.Unlock()

	if s.rates != nil {
		if err := s.rates.Save(ctx, rate); err != nil {
			s.log.Warn().Err(err).Msg("failed to persist exchange rate")
		}
	}
	if s.hub != nil {
		s.hub.NotifyAll(MsgRateUpdate, rate)
	}
	return rate, nil
}

// StartTicker runs Tick every interval until ctx ends.
func (s *EconomyServiceImpl) StartTicker(ctx context.Context, interval time.Duration) {
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
				if _, err := s.Tick(ctx); err != nil {
					s.log.Error().Err(err).Msg("exchange rate tick failed")
				}
			}
		}
	}()
}

func (s *EconomyServiceImpl) notifyBalance(userID uuid.UUID, b domain.Balances) {
	if s.hub != nil {
		s.hub.NotifyUser(userID, MsgBalanceUpdate, b)
	}
}
