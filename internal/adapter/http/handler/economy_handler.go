package handler

import (
	"strconv"
	"time"

	"casino-engine/internal/adapter/http/dto"
	"casino-engine/internal/adapter/http/middleware"
	"casino-engine/internal/core/ports"
	"casino-engine/pkg/apperror"
	"casino-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// EconomyHandler handles balances, exchange, the daily bonus and history.
type EconomyHandler struct {
	ledger   ports.LedgerService
	economy  ports.EconomyService
	cooldown time.Duration
}

// NewEconomyHandler creates a new EconomyHandler. bonusCooldown is only used
// to report when the next daily bonus unlocks.
func NewEconomyHandler(ledger ports.LedgerService, economy ports.EconomyService, bonusCooldown time.Duration) *EconomyHandler {
	return &EconomyHandler{ledger: ledger, economy: economy, cooldown: bonusCooldown}
}

// Balance handles GET /api/v1/economy/balance.
func (h *EconomyHandler) Balance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	u, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.BalanceResponse{Cash: u.Cash, Credits: u.Credits}
	if u.LastDailyBonus != nil {
		next := u.BonusAvailableAt(h.cooldown)
		resp.NextDailyBonus = &next
	}
	response.OK(c, resp)
}

// Rate handles GET /api/v1/economy/rate.
func (h *EconomyHandler) Rate(c *gin.Context) {
	response.OK(c, dto.NewRateResponse(h.economy.CurrentRate()))
}

// Exchange handles POST /api/v1/economy/exchange.
func (h *EconomyHandler) Exchange(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.ExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res, err := h.economy.Exchange(c.Request.Context(), userID, dto.ParseCurrency(req.From), req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// DailyBonus handles POST /api/v1/economy/daily-bonus.
func (h *EconomyHandler) DailyBonus(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	bal, err := h.economy.ClaimDailyBonus(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, bal)
}

// Transactions handles GET /api/v1/economy/transactions?limit=N.
func (h *EconomyHandler) Transactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, apperror.Validation("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	txs, err := h.ledger.History(c.Request.Context(), userID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, len(txs))
	for i, tx := range txs {
		items[i] = dto.NewTransactionResponse(tx)
	}
	response.OK(c, dto.TransactionListResponse{Items: items, Count: len(items)})
}
