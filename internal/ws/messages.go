// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypePriceUpdate    MsgType = "price_update"
	MsgTypeTrade          MsgType = "trade"
	MsgTypeMarketResolved MsgType = "market_resolved"
	MsgTypeNewMarket      MsgType = "new_market"
	MsgTypeError          MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// PriceUpdateMessage — sent every second to all clients.
// ──────────────────────────────────────────────────────────────────────────────

// PriceUpdateMessage carries the implied YES price, pool state and countdown
// for one market.
type PriceUpdateMessage struct {
	Type            MsgType         `json:"type"`
	MarketID        uuid.UUID       `json:"market_id"`
	YesPrice        decimal.Decimal `json:"yes_price"`
	ReserveYes      decimal.Decimal `json:"reserve_yes"`
	ReserveNo       decimal.Decimal `json:"reserve_no"`
	Vault           decimal.Decimal `json:"vault"`
	TimeLeftSeconds int64           `json:"time_left_seconds"`
	Timestamp       time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// TradeMessage — broadcast after a buy or swap so prices refresh for all.
// ──────────────────────────────────────────────────────────────────────────────

// TradeMessage notifies all clients that the reserves have moved.
type TradeMessage struct {
	Type       MsgType          `json:"type"`
	Kind       domain.EventType `json:"kind"` // buy or swap
	MarketID   uuid.UUID        `json:"market_id"`
	Side       domain.Side      `json:"side"`
	AmountIn   decimal.Decimal  `json:"amount_in"`
	SwapOut    decimal.Decimal  `json:"swap_out"`
	ReserveYes decimal.Decimal  `json:"reserve_yes"`
	ReserveNo  decimal.Decimal  `json:"reserve_no"`
	Timestamp  time.Time        `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketResolvedMessage — broadcast when a market is settled.
// ──────────────────────────────────────────────────────────────────────────────

// MarketResolvedMessage tells clients which side won.
type MarketResolvedMessage struct {
	Type      MsgType         `json:"type"`
	MarketID  uuid.UUID       `json:"market_id"`
	Outcome   domain.Side     `json:"outcome"`
	Vault     decimal.Decimal `json:"vault"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// NewMarketMessage — broadcast when a market opens.
// ──────────────────────────────────────────────────────────────────────────────

// NewMarketMessage carries the identity of the freshly created market.
type NewMarketMessage struct {
	Type      MsgType         `json:"type"`
	MarketID  uuid.UUID       `json:"market_id"`
	Seed      decimal.Decimal `json:"seed"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
