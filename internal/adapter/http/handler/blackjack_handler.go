package handler

import (
	"context"

	"casino-engine/internal/adapter/http/dto"
	"casino-engine/internal/adapter/http/middleware"
	"casino-engine/internal/core/ports"
	"casino-engine/pkg/apperror"
	"casino-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BlackjackHandler handles blackjack hands.
type BlackjackHandler struct {
	svc ports.BlackjackService
}

// NewBlackjackHandler creates a new BlackjackHandler.
func NewBlackjackHandler(svc ports.BlackjackService) *BlackjackHandler {
	return &BlackjackHandler{svc: svc}
}

// Deal handles POST /api/v1/blackjack/deal.
func (h *BlackjackHandler) Deal(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	view, err := h.svc.Deal(c.Request.Context(), userID, dto.ParseCurrency(req.Currency), req.BetAmount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, view)
}

// Hit handles POST /api/v1/blackjack/:hand_id/hit.
func (h *BlackjackHandler) Hit(c *gin.Context) { h.act(c, h.svc.Hit) }

// Stand handles POST /api/v1/blackjack/:hand_id/stand.
func (h *BlackjackHandler) Stand(c *gin.Context) { h.act(c, h.svc.Stand) }

// Double handles POST /api/v1/blackjack/:hand_id/double.
func (h *BlackjackHandler) Double(c *gin.Context) { h.act(c, h.svc.Double) }

// Current handles GET /api/v1/blackjack/current.
func (h *BlackjackHandler) Current(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	view, err := h.svc.Current(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

type handAction func(ctx context.Context, userID, handID uuid.UUID) (*ports.HandView, error)

func (h *BlackjackHandler) act(c *gin.Context, action handAction) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}
	handID, err := uuid.Parse(c.Param("hand_id"))
	if err != nil {
		response.Error(c, apperror.ErrHandNotActive())
		return
	}

	view, err := action(c.Request.Context(), userID, handID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}
