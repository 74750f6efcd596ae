// Package resolver defines the outcome sources a market can resolve from:
// a manual decider fed by an operator, and a price-threshold decider fed by
// an external price feed.
package resolver

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
)

// Decider produces the final outcome for a past-deadline market.  Returning
// domain.ErrOutcomeNotSet means "not ready yet, ask again later".
type Decider interface {
	Decide(ctx context.Context, m domain.MarketInfo) (domain.Side, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, m domain.MarketInfo) (domain.Side, error)

func (f DeciderFunc) Decide(ctx context.Context, m domain.MarketInfo) (domain.Side, error) {
	return f(ctx, m)
}

// ──────────────────────────────────────────────────────────────────────────────
// Manual
// ──────────────────────────────────────────────────────────────────────────────

// Manual is a decider an operator posts the outcome to out of band.  Until
// Post is called it reports ErrOutcomeNotSet and the sweep skips the market.
type Manual struct {
	mu      sync.Mutex
	set     bool
	outcome domain.Side
}

func NewManual() *Manual { return &Manual{} }

// Post records the outcome.  Posting twice is rejected so a fat-fingered
// second call cannot flip a decision the sweep may already have consumed.
func (m *Manual) Post(outcome domain.Side) error {
	if !outcome.IsValid() {
		return domain.ErrInvalidSide
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.set {
		return domain.ErrAlreadyResolved
	}
	m.set = true
	m.outcome = outcome
	return nil
}

func (m *Manual) Decide(_ context.Context, _ domain.MarketInfo) (domain.Side, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", domain.ErrOutcomeNotSet
	}
	return m.outcome, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Threshold
// ──────────────────────────────────────────────────────────────────────────────

// PriceFeed supplies a spot price for a symbol.  The oracle package provides
// the production implementation.
type PriceFeed interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Threshold resolves YES when the feed price for the symbol is at or above
// the strike at decision time, NO otherwise.
type Threshold struct {
	feed   PriceFeed
	symbol string
	strike decimal.Decimal
}

func NewThreshold(feed PriceFeed, symbol string, strike decimal.Decimal) *Threshold {
	return &Threshold{feed: feed, symbol: symbol, strike: strike}
}

func (t *Threshold) Decide(ctx context.Context, _ domain.MarketInfo) (domain.Side, error) {
	price, err := t.feed.Price(ctx, t.symbol)
	if err != nil {
		return "", fmt.Errorf("resolver.Threshold: fetch %s: %w", t.symbol, err)
	}
	if price.GreaterThanOrEqual(t.strike) {
		return domain.SideYes, nil
	}
	return domain.SideNo, nil
}
