package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
	"casino-engine/internal/core/ports/mocks"
	"casino-engine/internal/game"
	"casino-engine/internal/odds"
	"casino-engine/internal/rng"
	"casino-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// saturday is outside every default event window.
var saturday = time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC)

type gameTestDeps struct {
	svc       *GameServiceImpl
	registry  *odds.Registry
	ledger    *mocks.MockLedgerService
	economy   *mocks.MockEconomyService
	stats     *mocks.MockStatsRecorder
	publisher *mocks.MockEventPublisher
	hub       *mocks.MockBroadcaster
	signer    *HMACSignatureService
	ctrl      *gomock.Controller
}

func setupGameService(t *testing.T, provider rng.Provider) *gameTestDeps {
	ctrl := gomock.NewController(t)
	reg, err := odds.NewRegistry(odds.DefaultSnapshot(), zerolog.Nop())
	require.NoError(t, err)

	d := &gameTestDeps{
		registry:  reg,
		ledger:    mocks.NewMockLedgerService(ctrl),
		economy:   mocks.NewMockEconomyService(ctrl),
		stats:     mocks.NewMockStatsRecorder(ctrl),
		publisher: mocks.NewMockEventPublisher(ctrl),
		hub:       mocks.NewMockBroadcaster(ctrl),
		signer:    NewHMACSignatureService("round-key"),
		ctrl:      ctrl,
	}
	d.svc = NewGameService(reg, game.NewRegistry(), provider, d.ledger, d.economy, d.signer,
		d.stats, d.publisher, d.hub, 10, zerolog.Nop())
	d.svc.now = func() time.Time { return saturday }
	return d
}

func coinflipReq(userID uuid.UUID, bet int64, side string) ports.PlayRequest {
	return ports.PlayRequest{
		UserID:   userID,
		Game:     domain.GameCoinflip,
		Currency: domain.CurrencyCredits,
		Bet:      bet,
		Choice:   json.RawMessage(`{"side":"` + side + `"}`),
	}
}

// ==================== Play ====================

func TestGameService_Play_CoinflipWin(t *testing.T) {
	d := setupGameService(t, rng.NewSequence(0.1))
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	after := domain.Balances{Credits: 5903}

	d.economy.EXPECT().HouseCut(int64(1000), int64(1950)).Return(int64(47))
	d.ledger.EXPECT().SettleRound(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, st ports.Settlement) (domain.Balances, error) {
		assert.Equal(t, userID, st.UserID)
		assert.Equal(t, domain.CurrencyCredits, st.Currency)
		assert.Equal(t, int64(1000), st.Debit)
		assert.Equal(t, int64(1903), st.Credit)
		assert.Equal(t, domain.TxReasonRound, st.Reason)
		require.NotNil(t, st.Round)
		assert.Equal(t, "heads", st.Round.Outcome)
		return after, nil
	})
	d.stats.EXPECT().Record(ctx, domain.GameCoinflip, int64(1000), int64(1903)).Return(nil)
	d.hub.EXPECT().NotifyUser(userID, MsgBalanceUpdate, after).Return(1)
	d.publisher.EXPECT().PublishRound(gomock.Any(), gomock.Any()).Return(nil)

	res, err := d.svc.Play(ctx, coinflipReq(userID, 1000, "heads"))
	require.NoError(t, err)
	assert.Equal(t, after, res.Balances)
	assert.Empty(t, res.Event)

	r := res.Round
	assert.True(t, r.IsWin)
	assert.Equal(t, 1.95, r.Multiplier)
	assert.Equal(t, int64(1903), r.Payout)
	assert.Equal(t, int64(47), r.HouseCut)
	assert.Equal(t, []float64{0.1}, r.Draws)
	assert.True(t, d.signer.Verify(r.CanonicalString(), r.Signature))

	var detail map[string]any
	require.NoError(t, json.Unmarshal(r.Detail, &detail))
	assert.Equal(t, float64(1950), detail["gross_payout"])
}

func TestGameService_Play_CoinflipLoss(t *testing.T) {
	d := setupGameService(t, rng.NewSequence(0.9))
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.economy.EXPECT().HouseCut(int64(500), int64(0)).Return(int64(0))
	d.ledger.EXPECT().SettleRound(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, st ports.Settlement) (domain.Balances, error) {
		assert.Equal(t, int64(500), st.Debit)
		assert.Zero(t, st.Credit)
		return domain.Balances{Credits: 0}, nil
	})
	d.stats.EXPECT().Record(ctx, domain.GameCoinflip, int64(500), int64(0)).Return(nil)
	d.hub.EXPECT().NotifyUser(userID, MsgBalanceUpdate, gomock.Any()).Return(0)
	d.publisher.EXPECT().PublishRound(gomock.Any(), gomock.Any()).Return(nil)

	res, err := d.svc.Play(ctx, coinflipReq(userID, 500, "heads"))
	require.NoError(t, err)
	assert.False(t, res.Round.IsWin)
	assert.Equal(t, "tails", res.Round.Outcome)
}

func TestGameService_Play_RejectedBeforeLedger(t *testing.T) {
	d := setupGameService(t, rng.NewSequence(0.1, 0.1, 0.1))
	defer d.ctrl.Finish()
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name string
		req  ports.PlayRequest
		code string
	}{
		{"unknown game", ports.PlayRequest{UserID: userID, Game: "keno", Currency: domain.CurrencyCash, Bet: 100}, "GAME_003"},
		{"blackjack via play", ports.PlayRequest{UserID: userID, Game: domain.GameBlackjack, Currency: domain.CurrencyCash, Bet: 100}, "GAME_001"},
		{"bad currency", ports.PlayRequest{UserID: userID, Game: domain.GameSlots, Currency: "gold", Bet: 100}, "PAY_003"},
		{"below min bet", coinflipReq(userID, 99, "heads"), "GAME_001"},
		{"above max bet", coinflipReq(userID, 100001, "heads"), "GAME_001"},
		{"zero bet", coinflipReq(userID, 0, "heads"), "PAY_002"},
		{"bad choice", coinflipReq(userID, 100, "edge"), "GAME_001"},
		{"missing choice", ports.PlayRequest{UserID: userID, Game: domain.GameRoulette, Currency: domain.CurrencyCash, Bet: 100}, "GAME_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.svc.Play(ctx, tt.req)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestGameService_Play_DisabledGame(t *testing.T) {
	d := setupGameService(t, rng.NewSequence())
	defer d.ctrl.Finish()

	d.registry.Disable(domain.GamePlinko, "maintenance")
	_, err := d.svc.Play(context.Background(), ports.PlayRequest{
		UserID: uuid.New(), Game: domain.GamePlinko, Currency: domain.CurrencyCredits, Bet: 100,
		Choice: json.RawMessage(`{"rows":8}`),
	})
	assertAppError(t, err, "GAME_002")
}

func TestGameService_Play_RNGFailureDisablesGame(t *testing.T) {
	d := setupGameService(t, rng.NewSequence())
	defer d.ctrl.Finish()
	ctx := context.Background()

	_, err := d.svc.Play(ctx, coinflipReq(uuid.New(), 100, "heads"))
	assertAppError(t, err, "FAIR_001")
	assert.False(t, d.registry.Snapshot().Coinflip.Enabled)
	assert.True(t, d.registry.Snapshot().Slots.Enabled)

	_, err = d.svc.Play(ctx, coinflipReq(uuid.New(), 100, "heads"))
	assertAppError(t, err, "GAME_002")
}

func TestGameService_Play_LedgerFailureSkipsSideEffects(t *testing.T) {
	d := setupGameService(t, rng.NewSequence(0.1))
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.economy.EXPECT().HouseCut(gomock.Any(), gomock.Any()).Return(int64(0))
	d.ledger.EXPECT().SettleRound(ctx, gomock.Any()).Return(domain.Balances{}, apperror.ErrInsufficientFunds())
	// no stats, hub or publisher calls

	_, err := d.svc.Play(ctx, coinflipReq(uuid.New(), 1000, "heads"))
	assertAppError(t, err, "PAY_001")
}

func TestGameService_Play_SideEffectFailuresDoNotFailRound(t *testing.T) {
	d := setupGameService(t, rng.NewSequence(0.1))
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.economy.EXPECT().HouseCut(gomock.Any(), gomock.Any()).Return(int64(0))
	d.ledger.EXPECT().SettleRound(ctx, gomock.Any()).Return(domain.Balances{Credits: 10}, nil)
	d.stats.EXPECT().Record(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
	d.hub.EXPECT().NotifyUser(gomock.Any(), MsgBalanceUpdate, gomock.Any()).Return(0)
	d.publisher.EXPECT().PublishRound(gomock.Any(), gomock.Any()).Return(errors.New("no brokers"))

	res, err := d.svc.Play(ctx, coinflipReq(uuid.New(), 100, "heads"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Balances.Credits)
}

func TestGameService_Play_BigWinAnnounced(t *testing.T) {
	d := setupGameService(t, rng.NewSequence(0.99, 0.99, 0.99))
	defer d.ctrl.Finish()
	ctx := context.Background()
	userID := uuid.New()

	d.economy.EXPECT().HouseCut(int64(100), int64(7700)).Return(int64(380))
	d.ledger.EXPECT().SettleRound(ctx, gomock.Any()).Return(domain.Balances{Credits: 7320}, nil)
	d.stats.EXPECT().Record(ctx, domain.GameSlots, int64(100), int64(7320)).Return(nil)
	d.hub.EXPECT().NotifyUser(userID, MsgBalanceUpdate, gomock.Any()).Return(1)
	d.hub.EXPECT().NotifyAll(MsgBigWin, BigWin{
		UserID: userID, Game: domain.GameSlots, Wager: 100, Payout: 7320, Multiplier: 77,
	}).Return(4)
	d.publisher.EXPECT().PublishRound(gomock.Any(), gomock.Any()).Return(nil)

	res, err := d.svc.Play(ctx, ports.PlayRequest{UserID: userID, Game: domain.GameSlots, Currency: domain.CurrencyCredits, Bet: 100})
	require.NoError(t, err)
	assert.Equal(t, "jackpot", res.Round.Outcome)
}

func TestGameService_Play_TimedEvent(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	friday := time.Date(2026, 1, 2, 12, 0, 0, 0, chicago)

	t.Run("forfeit", func(t *testing.T) {
		d := setupGameService(t, rng.NewSequence(0.99, 0.99, 0.99, 0.01))
		defer d.ctrl.Finish()
		d.svc.now = func() time.Time { return friday }
		ctx := context.Background()

		d.economy.EXPECT().HouseCut(int64(300000), int64(0)).Return(int64(0))
		d.ledger.EXPECT().SettleRound(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, st ports.Settlement) (domain.Balances, error) {
			assert.Equal(t, int64(300000), st.Debit)
			assert.Zero(t, st.Credit)
			return domain.Balances{}, nil
		})
		d.stats.EXPECT().Record(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		d.hub.EXPECT().NotifyUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(0)
		d.publisher.EXPECT().PublishRound(gomock.Any(), gomock.Any()).Return(nil)

		// the event triples the slots max bet
		res, err := d.svc.Play(ctx, ports.PlayRequest{UserID: uuid.New(), Game: domain.GameSlots, Currency: domain.CurrencyCredits, Bet: 300000})
		require.NoError(t, err)
		assert.Equal(t, "gamble_friday", res.Event)
		assert.Equal(t, "jackpot_forfeited", res.Round.Outcome)
		assert.Len(t, res.Round.Draws, 4)
	})

	t.Run("boost", func(t *testing.T) {
		d := setupGameService(t, rng.NewSequence(0.99, 0.99, 0.99, 0.5))
		defer d.ctrl.Finish()
		d.svc.now = func() time.Time { return friday }
		ctx := context.Background()

		d.economy.EXPECT().HouseCut(int64(100), int64(11550)).Return(int64(0))
		d.ledger.EXPECT().SettleRound(ctx, gomock.Any()).Return(domain.Balances{}, nil)
		d.stats.EXPECT().Record(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
		d.hub.EXPECT().NotifyUser(gomock.Any(), gomock.Any(), gomock.Any()).Return(0)
		d.hub.EXPECT().NotifyAll(MsgBigWin, gomock.Any()).Return(0)
		d.publisher.EXPECT().PublishRound(gomock.Any(), gomock.Any()).Return(nil)

		res, err := d.svc.Play(ctx, ports.PlayRequest{UserID: uuid.New(), Game: domain.GameSlots, Currency: domain.CurrencyCredits, Bet: 100})
		require.NoError(t, err)
		assert.Equal(t, int64(11550), res.Round.Payout)
		assert.Equal(t, 115.5, res.Round.Multiplier)
	})

	t.Run("exempt game unaffected", func(t *testing.T) {
		d := setupGameService(t, rng.NewSequence(0.1))
		defer d.ctrl.Finish()
		d.svc.now = func() time.Time { return friday }

		// coinflip max bet is not raised and no extra draw is taken
		_, err := d.svc.Play(context.Background(), coinflipReq(uuid.New(), 300000, "heads"))
		assertAppError(t, err, "GAME_001")
	})
}

// ==================== Stats ====================

func TestGameService_Stats(t *testing.T) {
	d := setupGameService(t, rng.NewSequence())
	defer d.ctrl.Finish()
	ctx := context.Background()

	for _, g := range domain.Games {
		d.stats.EXPECT().Stats(ctx, g).Return(ports.GameStats{Game: g, Rounds: 2, Wagered: 200, Paid: 190}, nil)
	}
	stats, err := d.svc.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, len(domain.Games))
	assert.InDelta(t, 0.95, stats[0].RTP(), 1e-9)

	d.stats.EXPECT().Stats(ctx, domain.GameSlots).Return(ports.GameStats{}, errors.New("redis down"))
	_, err = d.svc.Stats(ctx)
	assertAppError(t, err, "SYS_000")
}

func TestGameService_Stats_NoRecorder(t *testing.T) {
	d := setupGameService(t, rng.NewSequence())
	defer d.ctrl.Finish()
	d.svc.stats = nil

	stats, err := d.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats, len(domain.Games))
	assert.Zero(t, stats[0].Rounds)
}
