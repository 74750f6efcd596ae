package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sideforge/binarymarket/internal/config"
	"github.com/sideforge/binarymarket/internal/repository"
	"github.com/sideforge/binarymarket/internal/wallet"
)

// FinanceHandler serves /admin/finance endpoints.  The report endpoints read
// the persisted event journal; trades may be nil when persistence is off.
type FinanceHandler struct {
	trades *repository.TradeRepository
	ledger *wallet.Ledger
	cfg    *config.Config
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(
	trades *repository.TradeRepository,
	ledger *wallet.Ledger,
	cfg *config.Config,
) *FinanceHandler {
	return &FinanceHandler{trades: trades, ledger: ledger, cfg: cfg}
}

// Report godoc
// GET /admin/finance/report?from=2026-01-01&to=2026-01-31
func (h *FinanceHandler) Report(c *gin.Context) {
	if h.trades == nil {
		respondError(c, http.StatusServiceUnavailable, "ERR_NO_DB", "persistence is disabled")
		return
	}

	fromStr := c.Query("from")
	toStr := c.Query("to")

	var from, to time.Time
	var err error
	if fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "from must be YYYY-MM-DD")
			return
		}
	} else {
		from = time.Now().UTC().AddDate(0, -1, 0).Truncate(24 * time.Hour) // default: last 30 days
	}
	if toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_DATE", "to must be YYYY-MM-DD")
			return
		}
		to = to.Add(24 * time.Hour) // inclusive
	} else {
		to = time.Now().UTC()
	}

	report, err := h.trades.GetFinanceReport(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, report)
}

// Treasury godoc
// GET /admin/finance/treasury
func (h *FinanceHandler) Treasury(c *gin.Context) {
	account := h.cfg.Engine.ProtocolAccount
	respondSuccess(c, http.StatusOK, gin.H{
		"account": account,
		"balance": h.ledger.BalanceOf(account),
	})
}

// MarketEvents godoc
// GET /admin/finance/events/:market_id?page=1&limit=50
func (h *FinanceHandler) MarketEvents(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("market_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	events, err := h.trades.ListByMarket(c.Request.Context(), marketID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, events, len(events), page, limit)
}
