package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Event types
// ──────────────────────────────────────────────────────────────────────────────

// EventType identifies the mutating operation that produced an event record.
type EventType string

const (
	EventMarketCreated EventType = "market_created"
	EventBuy           EventType = "buy"
	EventSwap          EventType = "swap"
	EventPairBurn      EventType = "pair_burn"
	EventResolved      EventType = "resolved"
	EventRedeemed      EventType = "redeemed"
	EventFeesWithdrawn EventType = "fees_withdrawn"
)

// ──────────────────────────────────────────────────────────────────────────────
// Event
// ──────────────────────────────────────────────────────────────────────────────

// Event is the structured notification emitted by every mutating engine
// operation: operation type, actor, amounts and the resulting reserves/vault.
// It is an observability side channel for external indexing, not part of the
// invariant surface.  One flat record shape keeps the audit trail a single
// table row.
type Event struct {
	ID       uuid.UUID `json:"id"        db:"id"`
	Type     EventType `json:"type"      db:"type"`
	MarketID uuid.UUID `json:"market_id" db:"market_id"`
	Actor    uuid.UUID `json:"actor"     db:"actor"`

	// Side the actor traded or the outcome declared, depending on Type.
	Side Side `json:"side,omitempty" db:"side"`

	AmountIn decimal.Decimal `json:"amount_in" db:"amount_in"` // gross collateral or tokens in
	Fee      decimal.Decimal `json:"fee"       db:"fee"`
	Minted   decimal.Decimal `json:"minted"    db:"minted"`   // complete-set size (buy only)
	SwapOut  decimal.Decimal `json:"swap_out"  db:"swap_out"` // swap-leg output units
	Payout   decimal.Decimal `json:"payout"    db:"payout"`   // collateral paid out

	// Resulting ledger counters, captured after the mutation committed.
	ReserveYes decimal.Decimal `json:"reserve_yes" db:"reserve_yes"`
	ReserveNo  decimal.Decimal `json:"reserve_no"  db:"reserve_no"`
	Vault      decimal.Decimal `json:"vault"       db:"vault"`
	FeePool    decimal.Decimal `json:"fee_pool"    db:"fee_pool"`

	At time.Time `json:"at" db:"at"`
}
