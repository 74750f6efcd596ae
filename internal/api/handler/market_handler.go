package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/api/middleware"
	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/engine"
)

// MarketHandler serves market creation, trading and lifecycle endpoints
// backed by the live registry.
type MarketHandler struct {
	registry *engine.Registry
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(registry *engine.Registry) *MarketHandler {
	return &MarketHandler{registry: registry}
}

// ── Queries ───────────────────────────────────────────────────────────────────

// List godoc
// GET /api/markets?page=1&limit=20
func (h *MarketHandler) List(c *gin.Context) {
	page, limit := parsePagination(c)
	infos := h.registry.List()

	total := len(infos)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	respondList(c, infos[start:end], total, page, limit)
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, m.Info())
}

// GetPrice godoc
// GET /api/markets/:id/price
func (h *MarketHandler) GetPrice(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id": m.ID(),
		"yes_price": m.YesPrice(),
	})
}

// PreviewBuy godoc
// GET /api/markets/:id/preview?side=YES&amount=1000000
func (h *MarketHandler) PreviewBuy(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "invalid amount")
		return
	}
	preview, err := m.PreviewBuy(domain.Side(c.Query("side")), amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, preview)
}

// GetBalances godoc
// GET /api/markets/:id/balances   (authed: returns the caller's position)
func (h *MarketHandler) GetBalances(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, m.BalancesOf(middleware.GetUserID(c)))
}

// ── Creation ──────────────────────────────────────────────────────────────────

type createMarketRequest struct {
	Question    string          `json:"question" binding:"required"`
	FeeBps      int64           `json:"fee_bps"`
	DurationSec int64           `json:"duration_sec" binding:"required"`
	Seed        decimal.Decimal `json:"seed"`
	ResolverID  *uuid.UUID      `json:"resolver_id"` // defaults to the creator
}

// Create godoc
// POST /api/markets
func (h *MarketHandler) Create(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	creator := middleware.GetUserID(c)
	resolver := creator
	if req.ResolverID != nil {
		resolver = *req.ResolverID
	}

	m, err := h.registry.Create(engine.CreateParams{
		Question: req.Question,
		Creator:  creator,
		Resolver: resolver,
		FeeBps:   req.FeeBps,
		Duration: time.Duration(req.DurationSec) * time.Second,
		Seed:     req.Seed,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, m.Info())
}

// ── Trading ───────────────────────────────────────────────────────────────────

type tradeRequest struct {
	Side   domain.Side     `json:"side" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Buy godoc
// POST /api/markets/:id/buy
func (h *MarketHandler) Buy(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	ev, err := m.Buy(middleware.GetUserID(c), req.Side, req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// Swap godoc
// POST /api/markets/:id/swap   (side = the side being sold)
func (h *MarketHandler) Swap(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	ev, err := m.Swap(middleware.GetUserID(c), req.Side, req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

type burnRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Burn godoc
// POST /api/markets/:id/burn
func (h *MarketHandler) Burn(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	var req burnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	ev, err := m.BurnPairs(middleware.GetUserID(c), req.Amount)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// ── Lifecycle ─────────────────────────────────────────────────────────────────

type resolveRequest struct {
	Outcome domain.Side `json:"outcome" binding:"required"`
}

// Resolve godoc
// POST /api/markets/:id/resolve
func (h *MarketHandler) Resolve(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	ev, err := m.Resolve(middleware.GetUserID(c), req.Outcome)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// Redeem godoc
// POST /api/markets/:id/redeem
func (h *MarketHandler) Redeem(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	ev, err := m.Redeem(middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// WithdrawFees godoc
// POST /api/markets/:id/fees/withdraw
func (h *MarketHandler) WithdrawFees(c *gin.Context) {
	m, ok := h.market(c)
	if !ok {
		return
	}
	ev, err := m.WithdrawFees(middleware.GetUserID(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, ev)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// market resolves the :id path parameter to a live market, writing the error
// response itself on failure.
func (h *MarketHandler) market(c *gin.Context) (*engine.Market, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return nil, false
	}
	m, err := h.registry.Get(id)
	if err != nil {
		respondDomainError(c, err)
		return nil, false
	}
	return m, true
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return
}
