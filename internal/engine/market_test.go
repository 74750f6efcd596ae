package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/wallet"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

// fixture bundles a market with its ledger and the identities around it.
type fixture struct {
	ledger   *wallet.Ledger
	market   *engine.Market
	creator  uuid.UUID
	resolver uuid.UUID
	protocol uuid.UUID
	now      time.Time
}

// newFixture seeds a 10-unit pool at 200 bps with a 1h window and a frozen
// clock, and funds the creator generously.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ledger:   wallet.NewLedger(),
		creator:  uuid.New(),
		resolver: uuid.New(),
		protocol: uuid.New(),
		now:      time.Now().UTC(),
	}
	if err := f.ledger.Credit(f.creator, domain.Units(1000)); err != nil {
		t.Fatalf("credit creator: %v", err)
	}

	id := uuid.New()
	m, err := engine.NewMarket(engine.NewMarketParams{
		ID:               id,
		Question:         "Will it rain tomorrow?",
		Creator:          f.creator,
		Resolver:         f.resolver,
		FeeBps:           200,
		Duration:         time.Hour,
		Seed:             domain.Units(10),
		Bank:             wallet.NewMarketBank(f.ledger, id),
		ProtocolShareBps: 2000,
		ProtocolAccount:  f.protocol,
	})
	if err != nil {
		t.Fatalf("NewMarket() error: %v", err)
	}
	m.SetClock(func() time.Time { return f.now })
	// NewMarket stamps the deadline from the real clock before SetClock can
	// take effect; re-anchor the frozen clock so the 1h window is exact.
	f.now = m.Info().Deadline.Add(-time.Hour)
	f.market = m
	return f
}

func (f *fixture) advance(dur time.Duration) { f.now = f.now.Add(dur) }

// fund creates a trader with the given whole-unit balance.
func (f *fixture) fund(t *testing.T, units int64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := f.ledger.Credit(id, domain.Units(units)); err != nil {
		t.Fatalf("credit trader: %v", err)
	}
	return id
}

// custody is the collateral the ledger holds for the market.
func (f *fixture) custody() decimal.Decimal {
	return f.ledger.BalanceOf(f.market.ID())
}

// checkConservation asserts custody == vault + feePool.
func (f *fixture) checkConservation(t *testing.T) {
	t.Helper()
	info := f.market.Info()
	want := info.Vault.Add(info.FeePool)
	if !f.custody().Equal(want) {
		t.Fatalf("conservation broken: custody=%s vault+fees=%s", f.custody(), want)
	}
}

// ── Creation ──────────────────────────────────────────────────────────────────

func TestNewMarket_SeedsFiftyFifty(t *testing.T) {
	f := newFixture(t)
	info := f.market.Info()

	if !info.Vault.Equal(domain.Units(10)) {
		t.Errorf("vault = %s, want 10 units", info.Vault)
	}
	if !info.ReserveYes.Equal(domain.Units(10)) || !info.ReserveNo.Equal(domain.Units(10)) {
		t.Errorf("reserves = %s/%s, want 10/10 units", info.ReserveYes, info.ReserveNo)
	}
	if !info.YesPrice.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("yes price = %s, want 0.5", info.YesPrice)
	}
	if !f.ledger.BalanceOf(f.creator).Equal(domain.Units(990)) {
		t.Errorf("creator balance = %s, want 990 units", f.ledger.BalanceOf(f.creator))
	}
	f.checkConservation(t)
}

func TestNewMarket_Validation(t *testing.T) {
	ledger := wallet.NewLedger()
	base := engine.NewMarketParams{
		ID:       uuid.New(),
		Question: "q",
		Creator:  uuid.New(),
		Resolver: uuid.New(),
		FeeBps:   100,
		Duration: time.Hour,
		Seed:     decimal.Zero,
		Bank:     wallet.NewMarketBank(ledger, uuid.New()),
	}

	cases := []struct {
		name   string
		mutate func(p *engine.NewMarketParams)
		want   error
	}{
		{"empty question", func(p *engine.NewMarketParams) { p.Question = "" }, domain.ErrQuestionRequired},
		{"nil resolver", func(p *engine.NewMarketParams) { p.Resolver = uuid.Nil }, domain.ErrResolverRequired},
		{"fee too high", func(p *engine.NewMarketParams) { p.FeeBps = 1001 }, domain.ErrFeeRateTooHigh},
		{"negative fee", func(p *engine.NewMarketParams) { p.FeeBps = -1 }, domain.ErrFeeRateTooHigh},
		{"zero duration", func(p *engine.NewMarketParams) { p.Duration = 0 }, domain.ErrInvalidDuration},
		{"fractional seed", func(p *engine.NewMarketParams) { p.Seed = decimal.NewFromFloat(1.5) }, domain.ErrFractionalAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			if _, err := engine.NewMarket(p); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

// ── Buy ───────────────────────────────────────────────────────────────────────

func TestBuy_WorkedScenario(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	ev, err := f.market.Buy(trader, domain.SideYes, domain.Units(2))
	if err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	// 2% fee on 2 units, then a constant-product swap of the net against
	// the 10/10 pool.
	if !ev.Fee.Equal(d(40_000)) {
		t.Errorf("fee = %s, want 40000", ev.Fee)
	}
	if !ev.Minted.Equal(d(1_960_000)) {
		t.Errorf("minted = %s, want 1960000", ev.Minted)
	}
	if !ev.SwapOut.Equal(d(1_638_796)) {
		t.Errorf("swap out = %s, want 1638796", ev.SwapOut)
	}

	info := f.market.Info()
	if !info.Vault.Equal(d(11_960_000)) {
		t.Errorf("vault = %s, want 11960000", info.Vault)
	}
	if !info.FeePool.Equal(d(40_000)) {
		t.Errorf("fee pool = %s, want 40000", info.FeePool)
	}
	if !info.ReserveNo.Equal(d(11_960_000)) || !info.ReserveYes.Equal(d(8_361_204)) {
		t.Errorf("reserves = %s/%s, want 8361204/11960000", info.ReserveYes, info.ReserveNo)
	}

	pos := f.market.BalancesOf(trader)
	if !pos.Yes.Equal(d(3_598_796)) {
		t.Errorf("trader YES = %s, want 3598796", pos.Yes)
	}
	if !pos.No.IsZero() {
		t.Errorf("trader NO = %s, want 0", pos.No)
	}

	// Buying YES must raise the YES price above the 0.5 starting point.
	if !info.YesPrice.GreaterThan(decimal.NewFromFloat(0.5)) {
		t.Errorf("yes price = %s, want > 0.5", info.YesPrice)
	}
	f.checkConservation(t)
}

func TestBuy_Gates(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 10)

	if _, err := f.market.Buy(trader, "MAYBE", domain.Units(1)); !errors.Is(err, domain.ErrInvalidSide) {
		t.Errorf("bad side: err = %v, want ErrInvalidSide", err)
	}
	if _, err := f.market.Buy(trader, domain.SideYes, decimal.Zero); !errors.Is(err, domain.ErrNonPositiveAmount) {
		t.Errorf("zero amount: err = %v, want ErrNonPositiveAmount", err)
	}
	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(100)); !errors.Is(err, domain.ErrInsufficientCollateral) {
		t.Errorf("underfunded: err = %v, want ErrInsufficientCollateral", err)
	}

	// A failed buy must leave the market exactly as it was.
	info := f.market.Info()
	if !info.Vault.Equal(domain.Units(10)) || !info.FeePool.IsZero() {
		t.Errorf("failed buy mutated state: vault=%s fees=%s", info.Vault, info.FeePool)
	}

	f.advance(2 * time.Hour)
	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(1)); !errors.Is(err, domain.ErrTradingEnded) {
		t.Errorf("past deadline: err = %v, want ErrTradingEnded", err)
	}
}

func TestBuy_ExactDeadlineRejected(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 10)

	f.advance(time.Hour) // now == deadline
	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(1)); !errors.Is(err, domain.ErrTradingEnded) {
		t.Errorf("at deadline: err = %v, want ErrTradingEnded", err)
	}
}

func TestPreviewBuy_MatchesRealTrade(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	preview, err := f.market.PreviewBuy(domain.SideNo, d(3_333_333))
	if err != nil {
		t.Fatalf("PreviewBuy() error: %v", err)
	}
	ev, err := f.market.Buy(trader, domain.SideNo, d(3_333_333))
	if err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	if !preview.Fee.Equal(ev.Fee) || !preview.Net.Equal(ev.Minted) || !preview.SwapOut.Equal(ev.SwapOut) {
		t.Errorf("preview %+v diverges from trade %+v", preview, ev)
	}
	pos := f.market.BalancesOf(trader)
	if !pos.No.Equal(preview.UnitsOut) {
		t.Errorf("trader NO = %s, preview promised %s", pos.No, preview.UnitsOut)
	}
	if !f.market.Info().YesPrice.Equal(preview.PriceAfter) {
		t.Errorf("price = %s, preview promised %s", f.market.Info().YesPrice, preview.PriceAfter)
	}
	// The preview itself must not have moved anything.
	f.checkConservation(t)
}

// ── Swap ──────────────────────────────────────────────────────────────────────

func TestSwap_MovesPositionThroughPool(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	before := f.market.BalancesOf(trader)
	vaultBefore := f.market.Info().Vault

	ev, err := f.market.Swap(trader, domain.SideYes, d(1_000_000))
	if err != nil {
		t.Fatalf("Swap() error: %v", err)
	}
	after := f.market.BalancesOf(trader)

	if !after.Yes.Equal(before.Yes.Sub(d(1_000_000))) {
		t.Errorf("YES = %s, want %s", after.Yes, before.Yes.Sub(d(1_000_000)))
	}
	if !after.No.Equal(ev.SwapOut) {
		t.Errorf("NO = %s, want %s", after.No, ev.SwapOut)
	}
	// Swaps never touch collateral: vault and fees are unchanged.
	if !f.market.Info().Vault.Equal(vaultBefore) {
		t.Errorf("vault moved on swap: %s -> %s", vaultBefore, f.market.Info().Vault)
	}
	f.checkConservation(t)
}

func TestSwap_Gates(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	if _, err := f.market.Swap(trader, domain.SideYes, domain.Units(1)); !errors.Is(err, domain.ErrInsufficientPosition) {
		t.Errorf("no position: err = %v, want ErrInsufficientPosition", err)
	}

	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	f.advance(2 * time.Hour)
	if _, err := f.market.Swap(trader, domain.SideYes, d(1)); !errors.Is(err, domain.ErrTradingEnded) {
		t.Errorf("past deadline: err = %v, want ErrTradingEnded", err)
	}
}

// ── BurnPairs ─────────────────────────────────────────────────────────────────

func TestBurnPairs_RedeemsCompleteSets(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	// Buy both sides so the trader holds a complete set.
	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("buy YES: %v", err)
	}
	if _, err := f.market.Buy(trader, domain.SideNo, domain.Units(2)); err != nil {
		t.Fatalf("buy NO: %v", err)
	}

	pos := f.market.BalancesOf(trader)
	burn := decimal.Min(pos.Yes, pos.No)
	walletBefore := f.ledger.BalanceOf(trader)
	vaultBefore := f.market.Info().Vault

	if _, err := f.market.BurnPairs(trader, burn); err != nil {
		t.Fatalf("BurnPairs() error: %v", err)
	}

	after := f.market.BalancesOf(trader)
	if !after.Yes.Equal(pos.Yes.Sub(burn)) || !after.No.Equal(pos.No.Sub(burn)) {
		t.Errorf("positions = %s/%s after burning %s", after.Yes, after.No, burn)
	}
	if !f.ledger.BalanceOf(trader).Equal(walletBefore.Add(burn)) {
		t.Errorf("payout not 1:1: wallet %s -> %s", walletBefore, f.ledger.BalanceOf(trader))
	}
	if !f.market.Info().Vault.Equal(vaultBefore.Sub(burn)) {
		t.Errorf("vault = %s, want %s", f.market.Info().Vault, vaultBefore.Sub(burn))
	}
	f.checkConservation(t)
}

func TestBurnPairs_RequiresBothSides(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	if _, err := f.market.BurnPairs(trader, d(1)); !errors.Is(err, domain.ErrInsufficientPosition) {
		t.Errorf("one-sided burn: err = %v, want ErrInsufficientPosition", err)
	}
}

func TestBurnPairs_WorksAfterResolution(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("buy YES: %v", err)
	}
	if _, err := f.market.Buy(trader, domain.SideNo, domain.Units(2)); err != nil {
		t.Fatalf("buy NO: %v", err)
	}
	f.advance(2 * time.Hour)
	if _, err := f.market.Resolve(f.resolver, domain.SideNo); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	// Pair burning is an exit path, not a trade: it survives resolution.
	if _, err := f.market.BurnPairs(trader, d(1_000_000)); err != nil {
		t.Fatalf("post-resolution burn: %v", err)
	}
	f.checkConservation(t)
}

// ── Resolve ───────────────────────────────────────────────────────────────────

func TestResolve_Lifecycle(t *testing.T) {
	f := newFixture(t)

	if _, err := f.market.Resolve(f.resolver, domain.SideYes); !errors.Is(err, domain.ErrResolveTooEarly) {
		t.Errorf("early resolve: err = %v, want ErrResolveTooEarly", err)
	}

	f.advance(time.Hour)
	if _, err := f.market.Resolve(uuid.New(), domain.SideYes); !errors.Is(err, domain.ErrUnauthorizedResolver) {
		t.Errorf("wrong caller: err = %v, want ErrUnauthorizedResolver", err)
	}
	if _, err := f.market.Resolve(f.resolver, "MAYBE"); !errors.Is(err, domain.ErrInvalidSide) {
		t.Errorf("bad outcome: err = %v, want ErrInvalidSide", err)
	}

	ev, err := f.market.Resolve(f.resolver, domain.SideYes)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if ev.Side != domain.SideYes {
		t.Errorf("event side = %s, want YES", ev.Side)
	}

	// Resolution is final: the second call fails and the outcome stands.
	if _, err := f.market.Resolve(f.resolver, domain.SideNo); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Errorf("double resolve: err = %v, want ErrAlreadyResolved", err)
	}
	info := f.market.Info()
	if info.Outcome == nil || *info.Outcome != domain.SideYes {
		t.Errorf("outcome = %v, want YES", info.Outcome)
	}
}

func TestResolve_BlocksTrading(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)
	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}

	f.advance(time.Hour)
	if _, err := f.market.Resolve(f.resolver, domain.SideYes); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(1)); !errors.Is(err, domain.ErrMarketResolved) {
		t.Errorf("buy after resolve: err = %v, want ErrMarketResolved", err)
	}
	if _, err := f.market.Swap(trader, domain.SideYes, d(1)); !errors.Is(err, domain.ErrMarketResolved) {
		t.Errorf("swap after resolve: err = %v, want ErrMarketResolved", err)
	}
}

// ── Redeem ────────────────────────────────────────────────────────────────────

func TestRedeem_PaysWinnersOneToOne(t *testing.T) {
	f := newFixture(t)
	winner := f.fund(t, 100)
	loser := f.fund(t, 100)

	if _, err := f.market.Buy(winner, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("winner buy: %v", err)
	}
	if _, err := f.market.Buy(loser, domain.SideNo, domain.Units(2)); err != nil {
		t.Fatalf("loser buy: %v", err)
	}

	if _, err := f.market.Redeem(winner); !errors.Is(err, domain.ErrNotResolved) {
		t.Errorf("pre-resolution redeem: err = %v, want ErrNotResolved", err)
	}

	f.advance(time.Hour)
	if _, err := f.market.Resolve(f.resolver, domain.SideYes); err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	winning := f.market.BalancesOf(winner).Yes
	walletBefore := f.ledger.BalanceOf(winner)

	ev, err := f.market.Redeem(winner)
	if err != nil {
		t.Fatalf("Redeem() error: %v", err)
	}
	if !ev.Payout.Equal(winning) {
		t.Errorf("payout = %s, want %s", ev.Payout, winning)
	}
	if !f.ledger.BalanceOf(winner).Equal(walletBefore.Add(winning)) {
		t.Errorf("wallet = %s, want %s", f.ledger.BalanceOf(winner), walletBefore.Add(winning))
	}
	if !f.market.BalancesOf(winner).Yes.IsZero() {
		t.Errorf("winning balance not zeroed: %s", f.market.BalancesOf(winner).Yes)
	}

	// Second redemption finds nothing; losers find nothing either.
	if _, err := f.market.Redeem(winner); !errors.Is(err, domain.ErrNoWinningPosition) {
		t.Errorf("double redeem: err = %v, want ErrNoWinningPosition", err)
	}
	if _, err := f.market.Redeem(loser); !errors.Is(err, domain.ErrNoWinningPosition) {
		t.Errorf("loser redeem: err = %v, want ErrNoWinningPosition", err)
	}
	// The loser's worthless balance is untouched, not deleted.
	if f.market.BalancesOf(loser).No.IsZero() {
		t.Errorf("loser NO balance was cleared")
	}
	f.checkConservation(t)
}

// ── WithdrawFees ──────────────────────────────────────────────────────────────

func TestWithdrawFees_SplitsProtocolAndOperator(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 100)

	if _, err := f.market.Buy(trader, domain.SideYes, domain.Units(2)); err != nil {
		t.Fatalf("Buy() error: %v", err)
	}
	// Fee pool now holds 40_000; protocol share is 2000 bps = 8_000.
	if _, err := f.market.WithdrawFees(uuid.New()); !errors.Is(err, domain.ErrUnauthorizedResolver) {
		t.Errorf("wrong caller: err = %v, want ErrUnauthorizedResolver", err)
	}

	ev, err := f.market.WithdrawFees(f.resolver)
	if err != nil {
		t.Fatalf("WithdrawFees() error: %v", err)
	}
	if !ev.Payout.Equal(d(40_000)) {
		t.Errorf("payout = %s, want 40000", ev.Payout)
	}
	if !f.ledger.BalanceOf(f.protocol).Equal(d(8_000)) {
		t.Errorf("protocol = %s, want 8000", f.ledger.BalanceOf(f.protocol))
	}
	if !f.ledger.BalanceOf(f.resolver).Equal(d(32_000)) {
		t.Errorf("operator = %s, want 32000", f.ledger.BalanceOf(f.resolver))
	}

	info := f.market.Info()
	if !info.FeePool.IsZero() {
		t.Errorf("fee pool = %s, want 0", info.FeePool)
	}
	// Vault is untouched by fee withdrawal.
	if !info.Vault.Equal(d(11_960_000)) {
		t.Errorf("vault = %s, want 11960000", info.Vault)
	}

	if _, err := f.market.WithdrawFees(f.resolver); !errors.Is(err, domain.ErrNothingToWithdraw) {
		t.Errorf("empty pool: err = %v, want ErrNothingToWithdraw", err)
	}
	f.checkConservation(t)
}
