package odds

import (
	"time"

	"casino-engine/internal/core/domain"
)

// DefaultSnapshot returns the built-in odds used when no odds file is configured.
// Bet limits are minor units.
func DefaultSnapshot() *domain.OddsSnapshot {
	return &domain.OddsSnapshot{
		Version: "builtin",
		Slots: domain.SlotsOdds{
			GameLimits: domain.GameLimits{Enabled: true, MinBet: 100, MaxBet: 100000, PayoutRate: 0.85},
			Symbols: []domain.SlotSymbol{
				{Symbol: "🍒", Weight: 28, Triple: 4, Double: 1},
				{Symbol: "🍋", Weight: 24, Triple: 6, Double: 1.5},
				{Symbol: "🍊", Weight: 18, Triple: 10, Double: 2},
				{Symbol: "🍇", Weight: 14, Triple: 15, Double: 2.5},
				{Symbol: "🔔", Weight: 9, Triple: 25, Double: 4},
				{Symbol: "💎", Weight: 5, Triple: 50, Double: 8},
				{Symbol: "7️⃣", Weight: 2, Triple: 77, Double: 15},
			},
			JackpotSym: "7️⃣",
		},
		Coinflip: domain.CoinflipOdds{
			GameLimits:  domain.GameLimits{Enabled: true, MinBet: 100, MaxBet: 100000, PayoutRate: 0.975},
			HeadsWeight: 0.5,
			Multiplier:  1.95,
		},
		Roulette: domain.RouletteOdds{
			GameLimits: domain.GameLimits{Enabled: true, MinBet: 100, MaxBet: 100000, PayoutRate: 0.975},
			Payouts: map[string]float64{
				"straight": 36, "split": 18, "street": 12, "corner": 9, "line": 6,
				"dozen": 3, "column": 3,
				"red": 2, "black": 2, "odd": 2, "even": 2, "low": 2, "high": 2,
			},
		},
		Plinko: domain.PlinkoOdds{
			GameLimits: domain.GameLimits{Enabled: true, MinBet: 100, MaxBet: 50000, PayoutRate: 0.94},
			CenterBias: 0.05,
			Tables: map[int][]float64{
				8:  {5.6, 2.1, 1.1, 1, 0.5, 1, 1.1, 2.1, 5.6},
				12: {10, 3, 1.6, 1.4, 1.1, 1, 0.5, 1, 1.1, 1.4, 1.6, 3, 10},
				16: {16, 9, 2, 1.4, 1.4, 1.2, 1.1, 1, 0.5, 1, 1.1, 1.2, 1.4, 1.4, 2, 9, 16},
			},
		},
		Blackjack: domain.BlackjackOdds{
			GameLimits:     domain.GameLimits{Enabled: true, MinBet: 100, MaxBet: 100000, PayoutRate: 0.99},
			WinPayout:      2,
			PushPayout:     1,
			NaturalPayout:  2.5,
			DealerStandsOn: 17,
		},
		Events: []domain.TimedEvent{{
			Name:               "gamble_friday",
			Weekday:            time.Friday,
			StartHour:          6,
			EndHour:            18,
			Timezone:           "America/Chicago",
			WinningsMultiplier: 1.5,
			WinRateReduction:   0.05,
			MaxBetMultiplier:   3,
			ExemptGames:        []domain.Game{domain.GameCoinflip, domain.GameBlackjack},
		}},
	}
}
