package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/config"
	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/oracle"
	"github.com/sideforge/binarymarket/internal/wallet"
	"github.com/sideforge/binarymarket/internal/ws"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	registry *engine.Registry
	ledger   *wallet.Ledger
	feed     *oracle.Feed
	hub      *ws.Hub
	cfg      *config.Config
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	registry *engine.Registry,
	ledger *wallet.Ledger,
	feed *oracle.Feed,
	hub *ws.Hub,
	cfg *config.Config,
) *DashboardHandler {
	return &DashboardHandler{
		registry: registry,
		ledger:   ledger,
		feed:     feed,
		hub:      hub,
		cfg:      cfg,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	// ── Market aggregates ────────────────────────────────────────────────────
	var (
		openCount     int
		resolvedCount int
		totalVault    decimal.Decimal
		totalFees     decimal.Decimal
	)
	infos := h.registry.List()
	for _, info := range infos {
		if info.Resolved {
			resolvedCount++
		} else {
			openCount++
		}
		totalVault = totalVault.Add(info.Vault)
		totalFees = totalFees.Add(info.FeePool)
	}

	// ── Treasury ─────────────────────────────────────────────────────────────
	treasury := h.ledger.BalanceOf(h.cfg.Engine.ProtocolAccount)

	// ── Oracle health ─────────────────────────────────────────────────────────
	var exchanges map[string]bool
	if h.feed != nil {
		exchanges = h.feed.ExchangeStatus()
	}

	// ── WS connections ────────────────────────────────────────────────────────
	var wsConnections int
	if h.hub != nil {
		wsConnections = h.hub.ConnectedCount()
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"timestamp":        time.Now().UTC(),
		"markets_total":    len(infos),
		"markets_open":     openCount,
		"markets_resolved": resolvedCount,
		"vault_total":      totalVault,
		"fee_pool_total":   totalFees,
		"treasury_balance": treasury,
		"exchange_status":  exchanges,
		"ws_connections":   wsConnections,
	})
}
