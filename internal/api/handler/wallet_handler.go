package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/api/middleware"
	"github.com/sideforge/binarymarket/internal/wallet"
)

// WalletHandler serves collateral balance and faucet endpoints.
type WalletHandler struct {
	ledger       *wallet.Ledger
	faucetEnable bool
	faucetCap    decimal.Decimal
}

// NewWalletHandler creates a WalletHandler.  The faucet is a development
// convenience; production configs disable it.
func NewWalletHandler(ledger *wallet.Ledger, faucetEnabled bool, faucetCap decimal.Decimal) *WalletHandler {
	return &WalletHandler{ledger: ledger, faucetEnable: faucetEnabled, faucetCap: faucetCap}
}

// GetBalance godoc
// GET /api/wallet/balance [JWT]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	respondSuccess(c, http.StatusOK, gin.H{
		"account": userID,
		"balance": h.ledger.BalanceOf(userID),
	})
}

type faucetRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// Faucet godoc
// POST /api/wallet/faucet [JWT]
func (h *WalletHandler) Faucet(c *gin.Context) {
	if !h.faucetEnable {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", "faucet is disabled")
		return
	}
	var req faucetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if req.Amount.GreaterThan(h.faucetCap) {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "amount exceeds the faucet cap")
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.ledger.Credit(userID, req.Amount); err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"account": userID,
		"balance": h.ledger.BalanceOf(userID),
	})
}
