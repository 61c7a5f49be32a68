package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"casino-engine/internal/adapter/http/dto"
	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
	"casino-engine/internal/core/ports/mocks"
	"casino-engine/internal/odds"
	"casino-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	var raw []byte
	switch b := body.(type) {
	case nil:
	case string:
		raw = []byte(b)
	default:
		raw, _ = json.Marshal(b)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error_code"].(string)
}

func newOddsRegistry(t *testing.T) *odds.Registry {
	reg, err := odds.NewRegistry(odds.DefaultSnapshot(), zerolog.Nop())
	require.NoError(t, err)
	return reg
}

// --- Game Handler Tests ---

func TestPlay_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGames := mocks.NewMockGameService(ctrl)
	h := NewGameHandler(mockGames, newOddsRegistry(t))

	userID := uuid.New()
	roundID := uuid.New()
	mockGames.EXPECT().Play(gomock.Any(), gomock.Any()).DoAndReturn(func(_ interface{}, req ports.PlayRequest) (*ports.PlayResult, error) {
		assert.Equal(t, userID, req.UserID)
		assert.Equal(t, domain.GameCoinflip, req.Game)
		assert.Equal(t, domain.CurrencyCredits, req.Currency)
		assert.Equal(t, int64(1000), req.Bet)
		assert.JSONEq(t, `{"side":"heads"}`, string(req.Choice))
		return &ports.PlayResult{
			Round: &domain.GameRound{
				ID: roundID, Game: domain.GameCoinflip, Wager: 1000, Outcome: "heads",
				IsWin: true, Multiplier: 1.95, Payout: 1950, Detail: json.RawMessage(`{"landed":"heads"}`),
			},
			Balances: domain.Balances{Cash: 0, Credits: 10950},
		}, nil
	})

	c, w := newContext(http.MethodPost, "/api/v1/games/coinflip/play",
		`{"bet_amount":1000,"currency":"CREDITS","choice":{"side":"heads"}}`)
	c.Params = gin.Params{{Key: "game", Value: "coinflip"}}
	c.Set("user_id", userID)

	h.Play(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, roundID.String(), data["round_id"])
	assert.Equal(t, true, data["is_win"])
	assert.Equal(t, float64(1950), data["payout"])
	assert.Equal(t, float64(10950), data["balance"].(map[string]interface{})["credits"])
	assert.Equal(t, "heads", data["detail"].(map[string]interface{})["landed"])
}

func TestPlay_UnknownGame(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewGameHandler(mocks.NewMockGameService(ctrl), newOddsRegistry(t))

	c, w := newContext(http.MethodPost, "/", `{"bet_amount":100,"currency":"cash"}`)
	c.Params = gin.Params{{Key: "game", Value: "keno"}}
	c.Set("user_id", uuid.New())
	h.Play(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "GAME_003", decodeErrorCode(t, w))
}

func TestPlay_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewGameHandler(mocks.NewMockGameService(ctrl), newOddsRegistry(t))

	c, w := newContext(http.MethodPost, "/", `{"bet_amount":0,"currency":"cash"}`)
	c.Params = gin.Params{{Key: "game", Value: "slots"}}
	c.Set("user_id", uuid.New())
	h.Play(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "GAME_001", decodeErrorCode(t, w))
}

func TestPlay_MissingUser(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewGameHandler(mocks.NewMockGameService(ctrl), newOddsRegistry(t))
	c, w := newContext(http.MethodPost, "/", nil)
	h.Play(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPlay_ServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ErrInsufficientFunds(), http.StatusPaymentRequired, "PAY_001"},
		{apperror.ErrGameDisabled("slots"), http.StatusForbidden, "GAME_002"},
		{apperror.ErrFairnessViolation(errors.New("entropy")), http.StatusServiceUnavailable, "FAIR_001"},
		{apperror.ErrConcurrencyConflict(errors.New("40001")), http.StatusConflict, "CONC_001"},
		{errors.New("boom"), http.StatusInternalServerError, "SYS_000"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockGames := mocks.NewMockGameService(ctrl)
			mockGames.EXPECT().Play(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			h := NewGameHandler(mockGames, newOddsRegistry(t))

			c, w := newContext(http.MethodPost, "/", `{"bet_amount":100,"currency":"cash"}`)
			c.Params = gin.Params{{Key: "game", Value: "slots"}}
			c.Set("user_id", uuid.New())
			h.Play(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeErrorCode(t, w))
		})
	}
}

func TestOdds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewGameHandler(mocks.NewMockGameService(ctrl), newOddsRegistry(t))
	c, w := newContext(http.MethodGet, "/api/v1/odds", nil)
	h.Odds(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "builtin", data["version"])
	assert.Contains(t, data, "slots")
}

func TestStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockGames := mocks.NewMockGameService(ctrl)
	mockGames.EXPECT().Stats(gomock.Any()).Return([]ports.GameStats{
		{Game: domain.GameSlots, Rounds: 4, Wagered: 400, Paid: 380},
	}, nil)
	h := NewGameHandler(mockGames, newOddsRegistry(t))

	c, w := newContext(http.MethodGet, "/", nil)
	h.Stats(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []dto.GameStatsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.InDelta(t, 0.95, resp.Data[0].RTP, 1e-9)
}

// --- Blackjack Handler Tests ---

func TestDeal_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBJ := mocks.NewMockBlackjackService(ctrl)
	h := NewBlackjackHandler(mockBJ)

	userID := uuid.New()
	handID := uuid.New()
	mockBJ.EXPECT().Deal(gomock.Any(), userID, domain.CurrencyCash, int64(500)).
		Return(&ports.HandView{ID: handID, State: "player_turn", Player: []string{"10♠", "9♠"}}, nil)

	c, w := newContext(http.MethodPost, "/", dto.DealRequest{BetAmount: 500, Currency: "cash"})
	c.Set("user_id", userID)
	h.Deal(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, handID.String(), decodeData(t, w)["hand_id"])
}

func TestHandAction_RoutesToService(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockBJ := mocks.NewMockBlackjackService(ctrl)
	h := NewBlackjackHandler(mockBJ)
	userID, handID := uuid.New(), uuid.New()

	mockBJ.EXPECT().Hit(gomock.Any(), userID, handID).Return(&ports.HandView{ID: handID, State: "player_turn"}, nil)
	mockBJ.EXPECT().Stand(gomock.Any(), userID, handID).Return(nil, apperror.ErrHandNotActive())
	mockBJ.EXPECT().Double(gomock.Any(), userID, handID).Return(nil, apperror.ErrIllegalAction("double"))

	run := func(fn gin.HandlerFunc) *httptest.ResponseRecorder {
		c, w := newContext(http.MethodPost, "/", nil)
		c.Params = gin.Params{{Key: "hand_id", Value: handID.String()}}
		c.Set("user_id", userID)
		fn(c)
		return w
	}

	assert.Equal(t, http.StatusOK, run(h.Hit).Code)

	w := run(h.Stand)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BJ_002", decodeErrorCode(t, w))

	w = run(h.Double)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BJ_003", decodeErrorCode(t, w))
}

func TestHandAction_BadHandID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewBlackjackHandler(mocks.NewMockBlackjackService(ctrl))
	c, w := newContext(http.MethodPost, "/", nil)
	c.Params = gin.Params{{Key: "hand_id", Value: "not-a-uuid"}}
	c.Set("user_id", uuid.New())
	h.Hit(c)

	assert.Equal(t, "BJ_002", decodeErrorCode(t, w))
}

// --- Economy Handler Tests ---

func TestBalance_WithBonusTimer(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewEconomyHandler(mockLedger, mocks.NewMockEconomyService(ctrl), 24*time.Hour)

	userID := uuid.New()
	claimed := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mockLedger.EXPECT().Balance(gomock.Any(), userID).Return(&domain.User{
		ID: userID, Cash: 700, Credits: 1200, LastDailyBonus: &claimed,
	}, nil)

	c, w := newContext(http.MethodGet, "/", nil)
	c.Set("user_id", userID)
	h.Balance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(700), data["cash"])
	assert.Equal(t, float64(1200), data["credits"])
	assert.Equal(t, "2026-03-02T08:00:00Z", data["next_daily_bonus"])
}

func TestExchange(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEconomy := mocks.NewMockEconomyService(ctrl)
	h := NewEconomyHandler(mocks.NewMockLedgerService(ctrl), mockEconomy, time.Hour)

	userID := uuid.New()
	mockEconomy.EXPECT().Exchange(gomock.Any(), userID, domain.CurrencyCash, int64(100)).
		Return(&domain.ExchangeResult{From: domain.CurrencyCash, To: domain.CurrencyCredits, Amount: 100, Received: 1000}, nil)

	c, w := newContext(http.MethodPost, "/", dto.ExchangeRequest{From: "cash", Amount: 100})
	c.Set("user_id", userID)
	h.Exchange(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1000), decodeData(t, w)["received"])

	c, w = newContext(http.MethodPost, "/", `{"from":"gold","amount":100}`)
	c.Set("user_id", userID)
	h.Exchange(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDailyBonus_Cooldown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEconomy := mocks.NewMockEconomyService(ctrl)
	h := NewEconomyHandler(mocks.NewMockLedgerService(ctrl), mockEconomy, time.Hour)

	mockEconomy.EXPECT().ClaimDailyBonus(gomock.Any(), gomock.Any()).Return(domain.Balances{}, apperror.ErrCooldownActive(90*time.Minute))

	c, w := newContext(http.MethodPost, "/", nil)
	c.Set("user_id", uuid.New())
	h.DailyBonus(c)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "BONUS_001", decodeErrorCode(t, w))
}

func TestRate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockEconomy := mocks.NewMockEconomyService(ctrl)
	mockEconomy.EXPECT().CurrentRate().Return(domain.ExchangeRate{Current: 10.1, Base: 10, FluctuationRange: 0.05})
	h := NewEconomyHandler(mocks.NewMockLedgerService(ctrl), mockEconomy, time.Hour)

	c, w := newContext(http.MethodGet, "/", nil)
	h.Rate(c)

	data := decodeData(t, w)
	assert.Equal(t, 10.1, data["rate"])
	assert.Equal(t, 9.5, data["low"])
}

func TestTransactions(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewEconomyHandler(mockLedger, mocks.NewMockEconomyService(ctrl), time.Hour)

	userID := uuid.New()
	roundID := uuid.New()
	mockLedger.EXPECT().History(gomock.Any(), userID, 5).Return([]domain.Transaction{
		{ID: uuid.New(), UserID: userID, CashDelta: -100, CashAfter: 900, Reason: domain.TxReasonRound, RoundID: &roundID, CreatedAt: time.Now()},
	}, nil)

	c, w := newContext(http.MethodGet, "/?limit=5", nil)
	c.Set("user_id", userID)
	h.Transactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["count"])
	item := data["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, roundID.String(), item["round_id"])
	assert.Equal(t, "ROUND", item["reason"])

	c, w = newContext(http.MethodGet, "/?limit=abc", nil)
	c.Set("user_id", userID)
	h.Transactions(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Health / Docs ---

func TestHealthCheck(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	db := mocks.NewMockHealthChecker(ctrl)
	db.EXPECT().Name().Return("postgresql").AnyTimes()
	db.EXPECT().Ping(gomock.Any()).Return(nil)
	cache := mocks.NewMockHealthChecker(ctrl)
	cache.EXPECT().Name().Return("redis").AnyTimes()
	cache.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	c, w := newContext(http.MethodGet, "/health", nil)
	HealthCheck(db, cache)(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["postgresql"].(map[string]interface{})["status"])
	redisDep := deps["redis"].(map[string]interface{})
	assert.Equal(t, "unhealthy", redisDep["status"])
	assert.Equal(t, "connection refused", redisDep["error"])
	assert.Contains(t, redisDep, "latency_ms")
}

func TestHealthCheck_NoDependencies(t *testing.T) {
	c, w := newContext(http.MethodGet, "/health", nil)
	HealthCheck()(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestDocs(t *testing.T) {
	c, w := newContext(http.MethodGet, "/swagger/spec", nil)
	NewDocsHandler(nil).Spec(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newContext(http.MethodGet, "/swagger/spec", nil)
	NewDocsHandler([]byte("openapi: 3.0.3")).Spec(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "openapi: 3.0.3", w.Body.String())
}
