// Package wallet implements the in-process collateral book: one account per
// identity, with markets holding their custody under their own market-id
// account.  Transfers are atomic under one lock, so the book can never show a
// debit without the matching credit.
package wallet

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/fpmath"
)

// Ledger is the collateral account book.  Accounts spring into existence on
// first credit; debits against unknown or underfunded accounts fail.
type Ledger struct {
	mu       sync.Mutex
	balances map[uuid.UUID]decimal.Decimal
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[uuid.UUID]decimal.Decimal)}
}

// Credit adds amount to the account, creating it if needed.  Used by the
// faucet and by deposit flows.
func (l *Ledger) Credit(id uuid.UUID, amount decimal.Decimal) error {
	if err := fpmath.CheckAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[id] = l.balance(id).Add(amount)
	return nil
}

// BalanceOf returns the account balance, zero for unknown accounts.
func (l *Ledger) BalanceOf(id uuid.UUID) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(id)
}

// Transfer moves amount from one account to another atomically.
func (l *Ledger) Transfer(from, to uuid.UUID, amount decimal.Decimal) error {
	if err := fpmath.CheckAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.balance(from)
	if have.LessThan(amount) {
		return fmt.Errorf("wallet.Transfer: %s has %s, needs %s: %w",
			from, have, amount, domain.ErrInsufficientCollateral)
	}
	l.balances[from] = have.Sub(amount)
	l.balances[to] = l.balance(to).Add(amount)
	return nil
}

// balance reads without locking; callers hold l.mu.
func (l *Ledger) balance(id uuid.UUID) decimal.Decimal {
	if b, ok := l.balances[id]; ok {
		return b
	}
	return decimal.Zero
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketBank
// ──────────────────────────────────────────────────────────────────────────────

// MarketBank scopes the ledger to one market's custody account.  It satisfies
// the engine's Bank interface: Pull moves collateral into the market account,
// Pay moves it back out.
type MarketBank struct {
	ledger  *Ledger
	account uuid.UUID
}

func NewMarketBank(ledger *Ledger, marketID uuid.UUID) *MarketBank {
	return &MarketBank{ledger: ledger, account: marketID}
}

func (b *MarketBank) Pull(from uuid.UUID, amount decimal.Decimal) error {
	return b.ledger.Transfer(from, b.account, amount)
}

func (b *MarketBank) Pay(to uuid.UUID, amount decimal.Decimal) error {
	return b.ledger.Transfer(b.account, to, amount)
}
