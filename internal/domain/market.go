// Package domain defines the core business entities and types for the
// binary-outcome CPMM prediction market system.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// Side identifies one of the two outcome tokens of a market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// IsValid returns true if the side is a recognised outcome token.
func (s Side) IsValid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other side of the market.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// FeeDenominator is the basis-point divisor (100% = 10000 bps).
const FeeDenominator = 10000

// MaxFeeBps caps the per-trade fee at 10%.
const MaxFeeBps = 1000

// CollateralScale is the number of micro-units per whole collateral unit.
// All ledger amounts are whole micro-units; every mutating operation rejects
// fractional input so floor-division semantics hold end to end.
const CollateralScale = 1_000_000

// Units converts whole collateral units to micro-units.
func Units(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Mul(decimal.NewFromInt(CollateralScale))
}

// ──────────────────────────────────────────────────────────────────────────────
// Position
// ──────────────────────────────────────────────────────────────────────────────

// Position is one participant's balance pair of outcome tokens.
type Position struct {
	Yes decimal.Decimal `json:"yes"`
	No  decimal.Decimal `json:"no"`
}

// Of returns the balance held on the given side.
func (p Position) Of(s Side) decimal.Decimal {
	if s == SideYes {
		return p.Yes
	}
	return p.No
}

// IsEmpty returns true when both balances are zero.
func (p Position) IsEmpty() bool {
	return p.Yes.IsZero() && p.No.IsZero()
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market is the sole stateful entity: pooled reserves, collateral vault,
// accrued fees, position balances and the resolution flags.  It carries no
// behaviour beyond pure views — all mutation goes through the engine, which
// serialises access.
type Market struct {
	ID         uuid.UUID `json:"id"`
	Question   string    `json:"question"`
	ResolverID uuid.UUID `json:"resolver_id"` // immutable after creation
	FeeBps     int64     `json:"fee_bps"`     // 0–1000 inclusive, immutable
	Deadline   time.Time `json:"deadline"`    // trading disabled at/after this instant

	Vault      decimal.Decimal `json:"vault"`
	ReserveYes decimal.Decimal `json:"reserve_yes"`
	ReserveNo  decimal.Decimal `json:"reserve_no"`
	FeePool    decimal.Decimal `json:"fee_pool"` // accrued, not yet withdrawn

	Resolved   bool       `json:"resolved"`
	Outcome    Side       `json:"outcome,omitempty"` // meaningful only when Resolved
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	Positions map[uuid.UUID]*Position `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Ended reports whether the trading window has elapsed.  This is a pure
// function of the clock, re-evaluated on every call — not a stored flag.
func (m *Market) Ended(now time.Time) bool {
	return !now.Before(m.Deadline)
}

// TotalBalance is the collateral the market must hold: vault plus fees.
func (m *Market) TotalBalance() decimal.Decimal {
	return m.Vault.Add(m.FeePool)
}

// YesPrice returns the implied probability of the YES side:
//
//	price = reserveNo / (reserveYes + reserveNo)
//
// Buying YES shrinks reserveYes relative to reserveNo, so the price strictly
// rises on any successful YES purchase.  Returns decimal.Zero for an
// unseeded (empty) pool.
func (m *Market) YesPrice() decimal.Decimal {
	total := m.ReserveYes.Add(m.ReserveNo)
	if total.IsZero() {
		return decimal.Zero
	}
	return m.ReserveNo.Div(total)
}

// PositionOf returns a copy of the participant's balance pair.
func (m *Market) PositionOf(id uuid.UUID) Position {
	if p, ok := m.Positions[id]; ok {
		return *p
	}
	return Position{Yes: decimal.Zero, No: decimal.Zero}
}

// TimeLeft returns the duration remaining until trading closes, or 0 once
// the deadline has passed.
func (m *Market) TimeLeft(now time.Time) time.Duration {
	remaining := m.Deadline.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketInfo — read model for API responses, WS broadcasts and snapshots
// ──────────────────────────────────────────────────────────────────────────────

// MarketInfo is a derived, read-only view of a Market.
type MarketInfo struct {
	ID          uuid.UUID       `json:"id"            db:"id"`
	Question    string          `json:"question"      db:"question"`
	ResolverID  uuid.UUID       `json:"resolver_id"   db:"resolver_id"`
	FeeBps      int64           `json:"fee_bps"       db:"fee_bps"`
	Deadline    time.Time       `json:"deadline"      db:"deadline"`
	Vault       decimal.Decimal `json:"vault"         db:"vault"`
	ReserveYes  decimal.Decimal `json:"reserve_yes"   db:"reserve_yes"`
	ReserveNo   decimal.Decimal `json:"reserve_no"    db:"reserve_no"`
	FeePool     decimal.Decimal `json:"fee_pool"      db:"fee_pool"`
	YesPrice    decimal.Decimal `json:"yes_price"     db:"yes_price"`
	Resolved    bool            `json:"resolved"      db:"resolved"`
	Outcome     *Side           `json:"outcome"       db:"outcome"`
	TimeLeftSec int64           `json:"time_left_sec" db:"-"`
	CreatedAt   time.Time       `json:"created_at"    db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"    db:"updated_at"`
}

// ToInfo builds a MarketInfo snapshot at the given instant.
func (m *Market) ToInfo(now time.Time) MarketInfo {
	info := MarketInfo{
		ID:          m.ID,
		Question:    m.Question,
		ResolverID:  m.ResolverID,
		FeeBps:      m.FeeBps,
		Deadline:    m.Deadline,
		Vault:       m.Vault,
		ReserveYes:  m.ReserveYes,
		ReserveNo:   m.ReserveNo,
		FeePool:     m.FeePool,
		YesPrice:    m.YesPrice(),
		Resolved:    m.Resolved,
		TimeLeftSec: int64(m.TimeLeft(now).Seconds()),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   now,
	}
	if m.Resolved {
		outcome := m.Outcome
		info.Outcome = &outcome
		info.TimeLeftSec = 0
	}
	return info
}

// ──────────────────────────────────────────────────────────────────────────────
// BuyPreview — dry-run result of the purchase algorithm
// ──────────────────────────────────────────────────────────────────────────────

// BuyPreview carries the outcome of a side-effect-free purchase simulation.
// It is produced by the identical fee and rounding path as the real trade so
// previews can never systematically overstate output.
type BuyPreview struct {
	Side       Side            `json:"side"`
	AmountIn   decimal.Decimal `json:"amount_in"`
	Fee        decimal.Decimal `json:"fee"`
	Net        decimal.Decimal `json:"net"`      // minted complete-set size
	SwapOut    decimal.Decimal `json:"swap_out"` // units gained from the swap leg
	UnitsOut   decimal.Decimal `json:"units_out"`
	PriceAfter decimal.Decimal `json:"price_after"` // implied YES price post-trade
}
