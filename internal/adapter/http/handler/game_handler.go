package handler

import (
	"casino-engine/internal/adapter/http/dto"
	"casino-engine/internal/adapter/http/middleware"
	"casino-engine/internal/core/domain"
	"casino-engine/internal/core/ports"
	"casino-engine/pkg/apperror"
	"casino-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// OddsReader exposes the active odds.
type OddsReader interface {
	Snapshot() *domain.OddsSnapshot
	ActiveEvent() *domain.TimedEvent
}

// GameHandler handles single-shot games, odds and RTP stats.
type GameHandler struct {
	games ports.GameService
	odds  OddsReader
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games ports.GameService, odds OddsReader) *GameHandler {
	return &GameHandler{games: games, odds: odds}
}

// Play handles POST /api/v1/games/:game/play.
func (h *GameHandler) Play(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	game, ok := domain.ParseGame(c.Param("game"))
	if !ok {
		response.Error(c, apperror.ErrUnknownGame(c.Param("game")))
		return
	}

	var req dto.PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	res, err := h.games.Play(c.Request.Context(), ports.PlayRequest{
		UserID:   userID,
		Game:     game,
		Currency: dto.ParseCurrency(req.Currency),
		Bet:      req.BetAmount,
		Choice:   req.Choice,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPlayResponse(res))
}

// Stats handles GET /api/v1/games/stats.
func (h *GameHandler) Stats(c *gin.Context) {
	stats, err := h.games.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewGameStatsResponse(stats))
}

// Odds handles GET /api/v1/odds.
func (h *GameHandler) Odds(c *gin.Context) {
	response.OK(c, dto.OddsResponse{
		OddsSnapshot: h.odds.Snapshot(),
		ActiveEvent:  h.odds.ActiveEvent(),
	})
}
