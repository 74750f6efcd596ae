package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sideforge/binarymarket/internal/api/middleware"
)

// AuthHandler issues access tokens.  There is no user store: identities are
// opaque UUIDs minted on demand, which is all the ledger needs to key
// accounts and positions.
type AuthHandler struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(secret []byte, ttl time.Duration) *AuthHandler {
	return &AuthHandler{secret: secret, ttl: ttl}
}

type tokenRequest struct {
	// UserID is optional; omitted means "mint me a fresh identity".
	UserID *uuid.UUID `json:"user_id"`
	Role   string     `json:"role"`
}

// Token godoc
// POST /api/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	userID := uuid.New()
	if req.UserID != nil {
		userID = *req.UserID
	}
	role := middleware.RoleTrader
	switch req.Role {
	case "", middleware.RoleTrader:
	case middleware.RoleOperator, middleware.RoleAdmin:
		role = req.Role
	default:
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "unknown role")
		return
	}

	token, err := middleware.IssueToken(h.secret, userID, role, h.ttl)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not issue token")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"token":      token,
		"user_id":    userID,
		"role":       role,
		"expires_in": int64(h.ttl.Seconds()),
	})
}
