package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sideforge/binarymarket/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondDomainError maps a domain error to its HTTP status via the sentinel
// predicates.  Anything unclassified is a 500 with a generic message so
// internals never leak.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
	case domain.IsAuthError(err):
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", err.Error())
	case isPaymentError(err):
		respondError(c, http.StatusUnprocessableEntity, "ERR_FUNDS", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "internal error")
	}
}

// isPaymentError groups the balance-related failures a caller can fix by
// funding their account or shrinking the request.
func isPaymentError(err error) bool {
	for _, target := range []error{
		domain.ErrInsufficientCollateral,
		domain.ErrInsufficientPosition,
		domain.ErrInsufficientVault,
		domain.ErrNoLiquidity,
		domain.ErrInsufficientOutput,
		domain.ErrNoWinningPosition,
		domain.ErrNothingToWithdraw,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
