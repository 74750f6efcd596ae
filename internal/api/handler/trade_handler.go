package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sideforge/binarymarket/internal/api/middleware"
	"github.com/sideforge/binarymarket/internal/repository"
)

// TradeHandler serves the persisted trade journal.
type TradeHandler struct {
	trades *repository.TradeRepository
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades *repository.TradeRepository) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// GetMyTrades godoc
// GET /api/trades/my?page=1&limit=20 [JWT]
func (h *TradeHandler) GetMyTrades(c *gin.Context) {
	userID := middleware.GetUserID(c)
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	events, err := h.trades.ListByActor(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch trade history")
		return
	}
	respondList(c, events, len(events), page, limit)
}

// GetMarketEvents godoc
// GET /api/markets/:id/events?page=1&limit=20
func (h *TradeHandler) GetMarketEvents(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	events, err := h.trades.ListByMarket(c.Request.Context(), marketID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch market events")
		return
	}
	respondList(c, events, len(events), page, limit)
}
