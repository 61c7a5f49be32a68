// Package odds holds the live, validated odds snapshot.
package odds

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/game"
	"casino-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	// A computed RTP may sit this far below the declared payout rate...
	rtpToleranceBelow = 0.05
	// ...but never more than this above it.
	rtpToleranceAbove = 0.005
)

// Registry publishes odds snapshots. Readers never observe a partially
// applied reload: a snapshot is validated in full, then swapped in atomically.
type Registry struct {
	current atomic.Pointer[domain.OddsSnapshot]
	mu      sync.Mutex // serializes writers
	log     zerolog.Logger
	now     func() time.Time
}

// NewRegistry validates and installs the initial snapshot.
func NewRegistry(initial *domain.OddsSnapshot, log zerolog.Logger) (*Registry, error) {
	r := &Registry{log: log, now: time.Now}
	if err := r.Reload(initial); err != nil {
		return nil, err
	}
	return r, nil
}

// Snapshot returns the current snapshot. Callers must treat it as read-only.
func (r *Registry) Snapshot() *domain.OddsSnapshot {
	return r.current.Load()
}

// Reload validates and installs a private copy of s. An invalid snapshot is
// rejected whole and the previous one stays live.
func (r *Registry) Reload(s *domain.OddsSnapshot) error {
	if s == nil {
		return apperror.ErrInvalidOdds(errors.New("nil snapshot"))
	}
	cp := s.Clone()
	if err := Validate(cp); err != nil {
		r.log.Error().Err(err).Str("version", s.Version).Msg("odds reload rejected, keeping previous snapshot")
		return apperror.ErrInvalidOdds(err)
	}
	cp.LoadedAt = r.now().UTC()

	r.mu.Lock()
	r.current.Store(cp)
	r.mu.Unlock()

	r.log.Info().Str("version", cp.Version).Msg("odds snapshot installed")
	return nil
}

// Disable takes a game offline without touching any other setting.
func (r *Registry) Disable(g domain.Game, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current.Load()
	if cur == nil {
		return
	}
	r.current.Store(cur.WithDisabled(g, reason))
	r.log.Warn().Str("game", string(g)).Str("reason", reason).Msg("game disabled")
}

// ActiveEvent returns the timed event in effect right now, if any.
func (r *Registry) ActiveEvent() *domain.TimedEvent {
	s := r.Snapshot()
	if s == nil {
		return nil
	}
	return s.ActiveEvent(r.now())
}

// Validate checks a snapshot for internal consistency and RTP bounds.
func Validate(s *domain.OddsSnapshot) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	checkRTP := func(g string, rtp, rate float64) {
		if rtp < rate-rtpToleranceBelow || rtp > rate+rtpToleranceAbove {
			add("%s: theoretical RTP %.4f outside [%.4f, %.4f]", g, rtp, rate-rtpToleranceBelow, rate+rtpToleranceAbove)
		}
	}

	for _, g := range domain.Games {
		lim, _ := s.Limits(g)
		if lim.MinBet <= 0 {
			add("%s: min_bet must be positive", g)
		}
		if lim.MaxBet < lim.MinBet {
			add("%s: max_bet below min_bet", g)
		}
		if lim.PayoutRate <= 0 || lim.PayoutRate > 1 {
			add("%s: payout_rate must be in (0, 1]", g)
		}
	}

	// slots
	if len(s.Slots.Symbols) == 0 {
		add("slots: no symbols")
	} else {
		var total float64
		for _, sym := range s.Slots.Symbols {
			if sym.Weight < 0 || sym.Triple < 0 || sym.Double < 0 {
				add("slots: symbol %s has negative weight or payout", sym.Symbol)
			}
			total += sym.Weight
		}
		if total <= 0 {
			add("slots: weights sum to zero")
		} else {
			checkRTP("slots", game.SlotsRTP(s.Slots), s.Slots.PayoutRate)
		}
	}

	// coinflip
	cf := s.Coinflip
	if cf.HeadsWeight <= 0 || cf.HeadsWeight >= 1 {
		add("coinflip: heads_weight must be in (0, 1)")
	} else if cf.Multiplier <= 0 {
		add("coinflip: multiplier must be positive")
	} else {
		// a guess wins with probability max(heads, tails) at worst
		worst := cf.HeadsWeight
		if 1-worst > worst {
			worst = 1 - worst
		}
		checkRTP("coinflip", worst*cf.Multiplier, cf.PayoutRate)
	}

	// roulette
	if len(s.Roulette.Payouts) == 0 {
		add("roulette: no bet types")
	}
	for t, rtp := range game.RouletteRTP(s.Roulette) {
		if !game.KnownRouletteBet(t) {
			add("roulette: unknown bet type %q", t)
			continue
		}
		checkRTP("roulette "+t, rtp, s.Roulette.PayoutRate)
	}

	// plinko
	if s.Plinko.CenterBias < 0 || s.Plinko.CenterBias > 0.2 {
		add("plinko: center_bias must be in [0, 0.2]")
	}
	if len(s.Plinko.Tables) == 0 {
		add("plinko: no row tables")
	}
	for rows, table := range s.Plinko.Tables {
		if rows < 1 || len(table) != rows+1 {
			add("plinko: %d rows needs %d buckets, got %d", rows, rows+1, len(table))
			continue
		}
		for _, m := range table {
			if m < 0 {
				add("plinko: %d rows has negative multiplier", rows)
				break
			}
		}
		checkRTP(fmt.Sprintf("plinko %d rows", rows), game.PlinkoRTP(s.Plinko, rows), s.Plinko.PayoutRate)
	}

	// blackjack
	bj := s.Blackjack
	if bj.WinPayout != 2 {
		add("blackjack: win_payout must be 2")
	}
	if bj.PushPayout != 1 {
		add("blackjack: push_payout must be 1")
	}
	if bj.NaturalPayout < 2 || bj.NaturalPayout > 2.5 {
		add("blackjack: natural_payout must be in [2, 2.5]")
	}
	if bj.DealerStandsOn != 0 && bj.DealerStandsOn != 17 {
		add("blackjack: dealer_stands_on must be 17")
	}

	for i, ev := range s.Events {
		if ev.Weekday < time.Sunday || ev.Weekday > time.Saturday {
			add("event %d: weekday out of range", i)
		}
		if ev.StartHour < 0 || ev.EndHour > 24 || ev.StartHour >= ev.EndHour {
			add("event %d: hours must satisfy 0 <= start < end <= 24", i)
		}
		if _, err := time.LoadLocation(ev.Timezone); err != nil || ev.Timezone == "" {
			add("event %d: unknown timezone %q", i, ev.Timezone)
		}
		if ev.WinningsMultiplier < 1 || ev.WinningsMultiplier > 5 {
			add("event %d: winnings_multiplier must be in [1, 5]", i)
		}
		if ev.WinRateReduction < 0 || ev.WinRateReduction >= 1 {
			add("event %d: win_rate_reduction must be in [0, 1)", i)
		}
		if ev.MaxBetMultiplier < 1 {
			add("event %d: max_bet_multiplier must be >= 1", i)
		}
	}

	return errors.Join(errs...)
}
