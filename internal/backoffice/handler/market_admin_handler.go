package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/oracle"
	"github.com/sideforge/binarymarket/internal/resolver"
)

// MarketAdminHandler serves /admin/markets endpoints.
type MarketAdminHandler struct {
	registry *engine.Registry
	feed     *oracle.Feed
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(registry *engine.Registry, feed *oracle.Feed) *MarketAdminHandler {
	return &MarketAdminHandler{registry: registry, feed: feed}
}

// List godoc
// GET /admin/markets?page=1&limit=50
func (h *MarketAdminHandler) List(c *gin.Context) {
	page, limit := adminPagination(c)
	infos := h.registry.List()

	start := (page - 1) * limit
	if start > len(infos) {
		start = len(infos)
	}
	end := start + limit
	if end > len(infos) {
		end = len(infos)
	}
	respondList(c, infos[start:end], len(infos), page, limit)
}

// Detail godoc
// GET /admin/markets/:id
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	m, err := h.registry.Get(id)
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
		return
	}
	respondSuccess(c, http.StatusOK, m.Info())
}

// Resolve godoc
// POST /admin/markets/:id/resolve
// Body: {"outcome": "YES"}
//
// Emergency override: posts the outcome on the market's behalf, bypassing
// the attached decider.  The engine's once-only rule still applies.
func (h *MarketAdminHandler) Resolve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		Outcome string `json:"outcome" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	outcome := domain.Side(strings.ToUpper(body.Outcome))
	if !outcome.IsValid() {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "outcome must be YES or NO")
		return
	}

	m, err := h.registry.Get(id)
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
		return
	}
	ev, err := m.Resolve(m.ResolverID(), outcome)
	if err != nil {
		respondError(c, http.StatusConflict, "ERR_RESOLVE", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// AttachThreshold godoc
// POST /admin/markets/:id/decider
// Body: {"symbol": "BTCUSDT", "strike": "100000"}
//
// Wires a price-threshold decider to the market: at the deadline the sweep
// resolves YES when the oracle price is at or above the strike.
func (h *MarketAdminHandler) AttachThreshold(c *gin.Context) {
	if h.feed == nil {
		respondError(c, http.StatusServiceUnavailable, "ERR_NO_ORACLE", "price oracle is not configured")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		Symbol string `json:"symbol" binding:"required"`
		Strike string `json:"strike" binding:"required"`
	}
	if err = c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	strike, err := decimal.NewFromString(body.Strike)
	if err != nil || !strike.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "strike must be a positive decimal")
		return
	}

	symbol := strings.ToUpper(strings.TrimSpace(body.Symbol))
	if err = h.registry.AttachDecider(id, resolver.NewThreshold(h.feed, symbol, strike)); err != nil {
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "market not found")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id": id,
		"symbol":    symbol,
		"strike":    strike,
	})
}
