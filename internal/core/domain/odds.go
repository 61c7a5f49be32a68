package domain

import (
	"time"
)

// GameLimits is the configuration every game shares.
type GameLimits struct {
	Enabled        bool    `mapstructure:"enabled" json:"enabled"`
	MinBet         int64   `mapstructure:"min_bet" json:"min_bet"`
	MaxBet         int64   `mapstructure:"max_bet" json:"max_bet"`
	PayoutRate     float64 `mapstructure:"payout_rate" json:"payout_rate"`
	DisabledReason string  `mapstructure:"-" json:"disabled_reason,omitempty"`
}

// SlotSymbol is one reel symbol with its draw weight and pay multipliers.
type SlotSymbol struct {
	Symbol string  `mapstructure:"symbol" json:"symbol"`
	Weight float64 `mapstructure:"weight" json:"weight"`
	Triple float64 `mapstructure:"triple" json:"triple"`
	Double float64 `mapstructure:"double" json:"double"`
}

type SlotsOdds struct {
	GameLimits `mapstructure:",squash"`
	Symbols    []SlotSymbol `mapstructure:"symbols" json:"symbols"`
	JackpotSym string       `mapstructure:"jackpot_symbol" json:"jackpot_symbol"`
}

type CoinflipOdds struct {
	GameLimits  `mapstructure:",squash"`
	HeadsWeight float64 `mapstructure:"heads_weight" json:"heads_weight"`
	Multiplier  float64 `mapstructure:"multiplier" json:"multiplier"`
}

// RouletteOdds maps a bet type to its total-return multiplier (stake included).
type RouletteOdds struct {
	GameLimits `mapstructure:",squash"`
	Payouts    map[string]float64 `mapstructure:"payouts" json:"payouts"`
}

// PlinkoOdds holds one bucket multiplier table per supported row count.
type PlinkoOdds struct {
	GameLimits `mapstructure:",squash"`
	CenterBias float64           `mapstructure:"center_bias" json:"center_bias"`
	Tables     map[int][]float64 `mapstructure:"tables" json:"tables"`
}

type BlackjackOdds struct {
	GameLimits     `mapstructure:",squash"`
	WinPayout      float64 `mapstructure:"win_payout" json:"win_payout"`
	PushPayout     float64 `mapstructure:"push_payout" json:"push_payout"`
	NaturalPayout  float64 `mapstructure:"natural_payout" json:"natural_payout"`
	DealerStandsOn int     `mapstructure:"dealer_stands_on" json:"dealer_stands_on"`
}

// TimedEvent is a recurring weekly window that boosts winnings while
// shaving win probability and raising bet ceilings.
type TimedEvent struct {
	Name               string       `mapstructure:"name" json:"name"`
	Weekday            time.Weekday `mapstructure:"weekday" json:"weekday"`
	StartHour          int          `mapstructure:"start_hour" json:"start_hour"`
	EndHour            int          `mapstructure:"end_hour" json:"end_hour"`
	Timezone           string       `mapstructure:"timezone" json:"timezone"`
	WinningsMultiplier float64      `mapstructure:"winnings_multiplier" json:"winnings_multiplier"`
	WinRateReduction   float64      `mapstructure:"win_rate_reduction" json:"win_rate_reduction"`
	MaxBetMultiplier   float64      `mapstructure:"max_bet_multiplier" json:"max_bet_multiplier"`
	ExemptGames        []Game       `mapstructure:"exempt_games" json:"exempt_games"`
}

// ActiveAt reports whether the window contains t.
// Timezone must already have been validated.
func (e TimedEvent) ActiveAt(t time.Time) bool {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return false
	}
	local := t.In(loc)
	if local.Weekday() != e.Weekday {
		return false
	}
	h := local.Hour()
	return h >= e.StartHour && h < e.EndHour
}

// Exempt reports whether g is unaffected by the event.
func (e TimedEvent) Exempt(g Game) bool {
	for _, x := range e.ExemptGames {
		if x == g {
			return true
		}
	}
	return false
}

// OddsSnapshot is an immutable, fully validated odds configuration.
// A round reads exactly one snapshot from start to finish.
type OddsSnapshot struct {
	Version   string        `mapstructure:"version" json:"version"`
	Slots     SlotsOdds     `mapstructure:"slots" json:"slots"`
	Coinflip  CoinflipOdds  `mapstructure:"coinflip" json:"coinflip"`
	Roulette  RouletteOdds  `mapstructure:"roulette" json:"roulette"`
	Plinko    PlinkoOdds    `mapstructure:"plinko" json:"plinko"`
	Blackjack BlackjackOdds `mapstructure:"blackjack" json:"blackjack"`
	Events    []TimedEvent  `mapstructure:"events" json:"events"`
	LoadedAt  time.Time     `mapstructure:"-" json:"loaded_at"`
}

// Limits returns the shared limits for game g.
func (s *OddsSnapshot) Limits(g Game) (GameLimits, bool) {
	switch g {
	case GameSlots:
		return s.Slots.GameLimits, true
	case GameCoinflip:
		return s.Coinflip.GameLimits, true
	case GameRoulette:
		return s.Roulette.GameLimits, true
	case GamePlinko:
		return s.Plinko.GameLimits, true
	case GameBlackjack:
		return s.Blackjack.GameLimits, true
	}
	return GameLimits{}, false
}

// Clone returns a deep copy of s that shares no maps or slices with it.
func (s *OddsSnapshot) Clone() *OddsSnapshot {
	cp := *s
	cp.Slots.Symbols = append([]SlotSymbol(nil), s.Slots.Symbols...)
	if s.Roulette.Payouts != nil {
		cp.Roulette.Payouts = make(map[string]float64, len(s.Roulette.Payouts))
		for k, v := range s.Roulette.Payouts {
			cp.Roulette.Payouts[k] = v
		}
	}
	if s.Plinko.Tables != nil {
		cp.Plinko.Tables = make(map[int][]float64, len(s.Plinko.Tables))
		for rows, table := range s.Plinko.Tables {
			cp.Plinko.Tables[rows] = append([]float64(nil), table...)
		}
	}
	if s.Events != nil {
		cp.Events = make([]TimedEvent, len(s.Events))
		for i, ev := range s.Events {
			ev.ExemptGames = append([]Game(nil), ev.ExemptGames...)
			cp.Events[i] = ev
		}
	}
	return &cp
}

// WithDisabled returns a copy of s with game g switched off.
func (s *OddsSnapshot) WithDisabled(g Game, reason string) *OddsSnapshot {
	cp := *s
	var lim *GameLimits
	switch g {
	case GameSlots:
		lim = &cp.Slots.GameLimits
	case GameCoinflip:
		lim = &cp.Coinflip.GameLimits
	case GameRoulette:
		lim = &cp.Roulette.GameLimits
	case GamePlinko:
		lim = &cp.Plinko.GameLimits
	case GameBlackjack:
		lim = &cp.Blackjack.GameLimits
	default:
		return &cp
	}
	lim.Enabled = false
	lim.DisabledReason = reason
	return &cp
}

// ActiveEvent returns the first timed event whose window contains now.
func (s *OddsSnapshot) ActiveEvent(now time.Time) *TimedEvent {
	for i := range s.Events {
		if s.Events[i].ActiveAt(now) {
			ev := s.Events[i]
			return &ev
		}
	}
	return nil
}
