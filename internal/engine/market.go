// Package engine implements the market engine: the reserve/vault ledger, the
// position ledger, the constant-product swap mechanism layered on complete-set
// minting, the resolution/redemption state machine and fee accounting.
//
// Every public operation is atomic: it validates preconditions, runs all
// arithmetic on scratch values, and only then mutates the ledgers — so a
// failed call never leaves partial state.  Outbound collateral transfers
// happen after all ledger mutations (effects before interactions); if the
// transfer fails the mutation is rolled back under the same lock.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/fpmath"
)

// ──────────────────────────────────────────────────────────────────────────────
// Capabilities injected into the engine
// ──────────────────────────────────────────────────────────────────────────────

// Bank is the collateral-custody capability of one market.  Pull moves
// collateral from a participant into the market's custody; Pay moves it back
// out.  A Pay failure must leave the participant's account untouched so the
// engine can restore its own ledger and fail the whole operation.
type Bank interface {
	Pull(from uuid.UUID, amount decimal.Decimal) error
	Pay(to uuid.UUID, amount decimal.Decimal) error
}

// Notifier receives the structured event emitted by every mutating operation.
// Implementations must not call back into the engine — they run under the
// market lock.
type Notifier interface {
	Notify(ev domain.Event)
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market wraps the market state with the single lock that serialises all
// mutating operations.
type Market struct {
	mu    sync.Mutex
	state *domain.Market

	bank   Bank
	notify Notifier

	// protocol share of withdrawn fees, in basis points, and its recipient
	protocolShareBps int64
	protocolAccount  uuid.UUID

	// now is the clock used for deadline checks; injectable for tests.
	now func() time.Time
}

// NewMarketParams carries the validated immutable configuration plus the
// seed collateral deposit for a new market.
type NewMarketParams struct {
	ID       uuid.UUID
	Question string
	Creator  uuid.UUID // pays the seed collateral
	Resolver uuid.UUID // authorized to resolve and withdraw fees
	FeeBps   int64
	Duration time.Duration
	Seed     decimal.Decimal // minted into equal reserves and vault

	Bank             Bank
	Notifier         Notifier
	ProtocolShareBps int64
	ProtocolAccount  uuid.UUID
}

// NewMarket validates the configuration, pulls the seed collateral from the
// creator and bootstraps the pool at a 50/50 price point: both reserves and
// the vault are set to the seed amount.
func NewMarket(p NewMarketParams) (*Market, error) {
	if p.Question == "" {
		return nil, domain.ErrQuestionRequired
	}
	if p.Resolver == uuid.Nil {
		return nil, domain.ErrResolverRequired
	}
	if p.FeeBps < 0 || p.FeeBps > domain.MaxFeeBps {
		return nil, domain.ErrFeeRateTooHigh
	}
	if p.Duration <= 0 {
		return nil, domain.ErrInvalidDuration
	}
	if !p.Seed.IsInteger() {
		return nil, domain.ErrFractionalAmount
	}
	if p.Seed.IsNegative() {
		return nil, domain.ErrNonPositiveAmount
	}

	m := &Market{
		bank:             p.Bank,
		notify:           p.Notifier,
		protocolShareBps: p.ProtocolShareBps,
		protocolAccount:  p.ProtocolAccount,
		now:              time.Now,
	}

	nowT := time.Now().UTC()
	m.state = &domain.Market{
		ID:         p.ID,
		Question:   p.Question,
		ResolverID: p.Resolver,
		FeeBps:     p.FeeBps,
		Deadline:   nowT.Add(p.Duration),
		Vault:      decimal.Zero,
		ReserveYes: decimal.Zero,
		ReserveNo:  decimal.Zero,
		FeePool:    decimal.Zero,
		Positions:  make(map[uuid.UUID]*domain.Position),
		CreatedAt:  nowT,
	}

	if p.Seed.IsPositive() {
		if err := m.bank.Pull(p.Creator, p.Seed); err != nil {
			return nil, fmt.Errorf("engine.NewMarket: pull seed: %w", err)
		}
		m.state.Vault = p.Seed
		m.state.ReserveYes = p.Seed
		m.state.ReserveNo = p.Seed
	}

	m.emit(domain.Event{
		Type:     domain.EventMarketCreated,
		MarketID: m.state.ID,
		Actor:    p.Creator,
		AmountIn: p.Seed,
	})
	return m, nil
}

// SetClock injects a deterministic clock post-construction (tests only).
func (m *Market) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// ──────────────────────────────────────────────────────────────────────────────
// Buy — collateral in, outcome tokens out
// ──────────────────────────────────────────────────────────────────────────────

// Buy executes the purchase algorithm for amountIn collateral:
//
//  1. fee = floor(amountIn * feeBps / 10000); net = amountIn - fee
//  2. vault += net (a complete set of net units of both sides is minted)
//  3. the net opposite-side units become the swap input against the pool
//  4. constant-product swap converts them into the wanted side
//  5. caller is credited net + swapOut units of the wanted side
//
// All arithmetic runs before the collateral is pulled; ledger mutation is the
// final step, so any failure leaves the market untouched.
func (m *Market) Buy(caller uuid.UUID, side domain.Side, amountIn decimal.Decimal) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !side.IsValid() {
		return nil, domain.ErrInvalidSide
	}
	if m.state.Resolved {
		return nil, domain.ErrMarketResolved
	}
	if m.state.Ended(m.now()) {
		return nil, domain.ErrTradingEnded
	}

	fee, net, err := fpmath.Fee(amountIn, m.state.FeeBps)
	if err != nil {
		return nil, err
	}

	// Swap input reserve is the opposite side; output reserve is the wanted side.
	rIn, rOut := m.reservesFor(side.Opposite())
	out, newRIn, newROut, err := fpmath.SwapOutput(rIn, rOut, net)
	if err != nil {
		return nil, err
	}

	// Interaction: take custody of the gross collateral.
	if err := m.bank.Pull(caller, amountIn); err != nil {
		return nil, fmt.Errorf("engine.Buy: pull collateral: %w", err)
	}

	// Effects: commit the precomputed state.
	m.state.Vault = m.state.Vault.Add(net)
	m.state.FeePool = m.state.FeePool.Add(fee)
	m.setReservesFor(side.Opposite(), newRIn, newROut)

	pos := m.position(caller)
	units := net.Add(out)
	if side == domain.SideYes {
		pos.Yes = pos.Yes.Add(units)
	} else {
		pos.No = pos.No.Add(units)
	}

	ev := m.emit(domain.Event{
		Type:     domain.EventBuy,
		MarketID: m.state.ID,
		Actor:    caller,
		Side:     side,
		AmountIn: amountIn,
		Fee:      fee,
		Minted:   net,
		SwapOut:  out,
	})
	return ev, nil
}

// PreviewBuy simulates Buy against the current reserves without touching any
// ledger.  It runs the identical fee and rounding path as Buy.
func (m *Market) PreviewBuy(side domain.Side, amountIn decimal.Decimal) (domain.BuyPreview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !side.IsValid() {
		return domain.BuyPreview{}, domain.ErrInvalidSide
	}
	fee, net, err := fpmath.Fee(amountIn, m.state.FeeBps)
	if err != nil {
		return domain.BuyPreview{}, err
	}
	rIn, rOut := m.reservesFor(side.Opposite())
	out, newRIn, newROut, err := fpmath.SwapOutput(rIn, rOut, net)
	if err != nil {
		return domain.BuyPreview{}, err
	}

	// Post-trade implied YES price from the scratch reserves.
	var newYes, newNo decimal.Decimal
	if side.Opposite() == domain.SideYes {
		newYes, newNo = newRIn, newROut
	} else {
		newYes, newNo = newROut, newRIn
	}
	priceAfter := newNo.Div(newYes.Add(newNo))

	return domain.BuyPreview{
		Side:       side,
		AmountIn:   amountIn,
		Fee:        fee,
		Net:        net,
		SwapOut:    out,
		UnitsOut:   net.Add(out),
		PriceAfter: priceAfter,
	}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Swap — direct position-to-position exchange through the pool
// ──────────────────────────────────────────────────────────────────────────────

// Swap converts amount units of fromSide into the opposite side through the
// constant-product pool.  No fee is charged: fees apply only at the
// collateral entry point.  Swaps are trades, so the deadline overlay applies.
func (m *Market) Swap(caller uuid.UUID, fromSide domain.Side, amount decimal.Decimal) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !fromSide.IsValid() {
		return nil, domain.ErrInvalidSide
	}
	if m.state.Resolved {
		return nil, domain.ErrMarketResolved
	}
	if m.state.Ended(m.now()) {
		return nil, domain.ErrTradingEnded
	}
	if err := fpmath.CheckAmount(amount); err != nil {
		return nil, err
	}

	pos := m.position(caller)
	if pos.Of(fromSide).LessThan(amount) {
		return nil, domain.ErrInsufficientPosition
	}

	rIn, rOut := m.reservesFor(fromSide)
	out, newRIn, newROut, err := fpmath.SwapOutput(rIn, rOut, amount)
	if err != nil {
		return nil, err
	}

	m.setReservesFor(fromSide, newRIn, newROut)
	if fromSide == domain.SideYes {
		pos.Yes = pos.Yes.Sub(amount)
		pos.No = pos.No.Add(out)
	} else {
		pos.No = pos.No.Sub(amount)
		pos.Yes = pos.Yes.Add(out)
	}

	ev := m.emit(domain.Event{
		Type:     domain.EventSwap,
		MarketID: m.state.ID,
		Actor:    caller,
		Side:     fromSide,
		AmountIn: amount,
		SwapOut:  out,
	})
	return ev, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// BurnPairs — redeem complete sets for collateral, the inverse of minting
// ──────────────────────────────────────────────────────────────────────────────

// BurnPairs burns amount units of BOTH sides and pays amount collateral 1:1.
// This exit path bypasses the AMM entirely and stays available pre- and
// post-resolution.
func (m *Market) BurnPairs(caller uuid.UUID, amount decimal.Decimal) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := fpmath.CheckAmount(amount); err != nil {
		return nil, err
	}
	pos := m.position(caller)
	if pos.Yes.LessThan(amount) || pos.No.LessThan(amount) {
		return nil, domain.ErrInsufficientPosition
	}
	if m.state.Vault.LessThan(amount) {
		return nil, domain.ErrInsufficientVault
	}

	// Effects first, then the outbound transfer.
	pos.Yes = pos.Yes.Sub(amount)
	pos.No = pos.No.Sub(amount)
	m.state.Vault = m.state.Vault.Sub(amount)

	if err := m.bank.Pay(caller, amount); err != nil {
		pos.Yes = pos.Yes.Add(amount)
		pos.No = pos.No.Add(amount)
		m.state.Vault = m.state.Vault.Add(amount)
		return nil, fmt.Errorf("engine.BurnPairs: payout: %w", err)
	}

	ev := m.emit(domain.Event{
		Type:     domain.EventPairBurn,
		MarketID: m.state.ID,
		Actor:    caller,
		AmountIn: amount,
		Payout:   amount,
	})
	return ev, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Resolution & redemption
// ──────────────────────────────────────────────────────────────────────────────

// Resolve finalises the market outcome.  Callable exactly once, only by the
// authorized resolver, only at or after the trading deadline.  Irreversible.
func (m *Market) Resolve(caller uuid.UUID, outcome domain.Side) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.state.ResolverID {
		return nil, domain.ErrUnauthorizedResolver
	}
	if m.state.Resolved {
		return nil, domain.ErrAlreadyResolved
	}
	if !m.state.Ended(m.now()) {
		return nil, domain.ErrResolveTooEarly
	}
	if !outcome.IsValid() {
		return nil, domain.ErrInvalidSide
	}

	nowT := m.now().UTC()
	m.state.Resolved = true
	m.state.Outcome = outcome
	m.state.ResolvedAt = &nowT

	ev := m.emit(domain.Event{
		Type:     domain.EventResolved,
		MarketID: m.state.ID,
		Actor:    caller,
		Side:     outcome,
	})
	return ev, nil
}

// Redeem pays the caller's winning-side balance 1:1 in collateral and zeroes
// it.  Losing-side balances are left untouched and become permanently
// worthless.  A caller with no winning balance gets ErrNoWinningPosition —
// the expected outcome for a loser, not a fault.
func (m *Market) Redeem(caller uuid.UUID) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.state.Resolved {
		return nil, domain.ErrNotResolved
	}

	pos := m.position(caller)
	winning := pos.Of(m.state.Outcome)
	if winning.IsZero() {
		return nil, domain.ErrNoWinningPosition
	}
	if m.state.Vault.LessThan(winning) {
		return nil, domain.ErrInsufficientVault
	}

	if m.state.Outcome == domain.SideYes {
		pos.Yes = decimal.Zero
	} else {
		pos.No = decimal.Zero
	}
	m.state.Vault = m.state.Vault.Sub(winning)

	if err := m.bank.Pay(caller, winning); err != nil {
		if m.state.Outcome == domain.SideYes {
			pos.Yes = winning
		} else {
			pos.No = winning
		}
		m.state.Vault = m.state.Vault.Add(winning)
		return nil, fmt.Errorf("engine.Redeem: payout: %w", err)
	}

	ev := m.emit(domain.Event{
		Type:     domain.EventRedeemed,
		MarketID: m.state.ID,
		Actor:    caller,
		Side:     m.state.Outcome,
		Payout:   winning,
	})
	return ev, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Fee withdrawal
// ──────────────────────────────────────────────────────────────────────────────

// WithdrawFees pays out the entire accrued fee pool, split between the
// protocol treasury and the market operator (the authorized resolver).  The
// floor of the protocol share goes to the treasury; rounding dust stays with
// the operator.  Vault and reserves are never touched.
func (m *Market) WithdrawFees(caller uuid.UUID) (*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.state.ResolverID {
		return nil, domain.ErrUnauthorizedResolver
	}
	pool := m.state.FeePool
	if !pool.IsPositive() {
		return nil, domain.ErrNothingToWithdraw
	}

	protocolCut := fpmath.MulDivFloor(pool, decimal.NewFromInt(m.protocolShareBps), decimal.NewFromInt(domain.FeeDenominator))
	operatorCut := pool.Sub(protocolCut)

	m.state.FeePool = decimal.Zero

	if protocolCut.IsPositive() {
		if err := m.bank.Pay(m.protocolAccount, protocolCut); err != nil {
			m.state.FeePool = pool
			return nil, fmt.Errorf("engine.WithdrawFees: protocol payout: %w", err)
		}
	}
	if operatorCut.IsPositive() {
		if err := m.bank.Pay(m.state.ResolverID, operatorCut); err != nil {
			// Claw the protocol cut back so the ledger stays whole.
			if protocolCut.IsPositive() {
				_ = m.bank.Pull(m.protocolAccount, protocolCut)
			}
			m.state.FeePool = pool
			return nil, fmt.Errorf("engine.WithdrawFees: operator payout: %w", err)
		}
	}

	ev := m.emit(domain.Event{
		Type:     domain.EventFeesWithdrawn,
		MarketID: m.state.ID,
		Actor:    caller,
		Payout:   pool,
		Fee:      protocolCut, // protocol share, for the audit trail
	})
	return ev, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Read-only views
// ──────────────────────────────────────────────────────────────────────────────

// ID returns the market identifier.
func (m *Market) ID() uuid.UUID {
	return m.state.ID
}

// ResolverID returns the authorized resolver identity.
func (m *Market) ResolverID() uuid.UUID {
	return m.state.ResolverID
}

// Info returns a consistent snapshot of the market state.
func (m *Market) Info() domain.MarketInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ToInfo(m.now())
}

// YesPrice returns the implied probability of the YES side.
func (m *Market) YesPrice() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.YesPrice()
}

// BalancesOf returns the participant's balance pair.
func (m *Market) BalancesOf(id uuid.UUID) domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.PositionOf(id)
}

// Resolved reports whether the outcome has been finalised.
func (m *Market) Resolved() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Resolved
}

// DueForResolution reports whether the deadline has passed and no outcome has
// been recorded yet.
func (m *Market) DueForResolution(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.state.Resolved && m.state.Ended(now)
}

// ──────────────────────────────────────────────────────────────────────────────
// Internals — callers must hold m.mu
// ──────────────────────────────────────────────────────────────────────────────

// reservesFor returns (reserve of inSide, reserve of the opposite side).
func (m *Market) reservesFor(inSide domain.Side) (rIn, rOut decimal.Decimal) {
	if inSide == domain.SideYes {
		return m.state.ReserveYes, m.state.ReserveNo
	}
	return m.state.ReserveNo, m.state.ReserveYes
}

// setReservesFor stores swap results back into the named reserves.
func (m *Market) setReservesFor(inSide domain.Side, rIn, rOut decimal.Decimal) {
	if inSide == domain.SideYes {
		m.state.ReserveYes = rIn
		m.state.ReserveNo = rOut
		return
	}
	m.state.ReserveNo = rIn
	m.state.ReserveYes = rOut
}

// position returns the caller's live balance pair, creating it on first use.
func (m *Market) position(id uuid.UUID) *domain.Position {
	p, ok := m.state.Positions[id]
	if !ok {
		p = &domain.Position{Yes: decimal.Zero, No: decimal.Zero}
		m.state.Positions[id] = p
	}
	return p
}

// emit stamps the event with the resulting counters and hands it to the
// notifier.  Runs under m.mu; notifiers must be non-blocking.
func (m *Market) emit(ev domain.Event) *domain.Event {
	ev.ID = uuid.New()
	ev.ReserveYes = m.state.ReserveYes
	ev.ReserveNo = m.state.ReserveNo
	ev.Vault = m.state.Vault
	ev.FeePool = m.state.FeePool
	ev.At = time.Now().UTC()

	if m.notify != nil {
		m.notify.Notify(ev)
	}
	slog.Debug("market event",
		"type", ev.Type, "market", ev.MarketID, "actor", ev.Actor,
		"amount_in", ev.AmountIn, "payout", ev.Payout)
	return &ev
}
