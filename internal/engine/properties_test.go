package engine_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
)

// Randomized operation sequences checking the ledger-level invariants that
// must hold after every single step regardless of ordering.

func TestProperties_RandomTradeSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		f := newFixture(t)
		traders := make([]uuid.UUID, 4)
		for i := range traders {
			traders[i] = f.fund(t, 500)
		}

		kPrev := f.market.Info().ReserveYes.Mul(f.market.Info().ReserveNo)

		for step := 0; step < 60; step++ {
			trader := traders[rng.Intn(len(traders))]
			side := domain.SideYes
			if rng.Intn(2) == 0 {
				side = domain.SideNo
			}

			switch rng.Intn(4) {
			case 0, 1: // buys dominate, like real flow
				amount := decimal.NewFromInt(rng.Int63n(5_000_000) + 1)
				if _, err := f.market.Buy(trader, side, amount); err != nil {
					t.Fatalf("run %d step %d: buy: %v", run, step, err)
				}
			case 2:
				pos := f.market.BalancesOf(trader)
				held := pos.Of(side)
				if held.IsZero() {
					continue
				}
				amount := decimal.NewFromInt(rng.Int63n(held.IntPart()) + 1)
				if _, err := f.market.Swap(trader, side, amount); err != nil {
					t.Fatalf("run %d step %d: swap: %v", run, step, err)
				}
			case 3:
				pos := f.market.BalancesOf(trader)
				pair := decimal.Min(pos.Yes, pos.No)
				if pair.IsZero() {
					continue
				}
				if _, err := f.market.BurnPairs(trader, pair); err != nil {
					t.Fatalf("run %d step %d: burn: %v", run, step, err)
				}
			}

			info := f.market.Info()

			// Conservation after every step.
			f.checkConservation(t)

			// Both reserves stay live; no operation can drain a side.
			if !info.ReserveYes.IsPositive() || !info.ReserveNo.IsPositive() {
				t.Fatalf("run %d step %d: dead reserve %s/%s", run, step, info.ReserveYes, info.ReserveNo)
			}

			// Per step, the reserve product loses at most one floor-division
			// remainder (strictly less than the grown input reserve).  A
			// bigger drop means the pool paid out more than the curve allows.
			k := info.ReserveYes.Mul(info.ReserveNo)
			bound := info.ReserveYes.Add(info.ReserveNo)
			if k.Add(bound).LessThanOrEqual(kPrev) {
				t.Fatalf("run %d step %d: product collapsed %s -> %s", run, step, kPrev, k)
			}
			kPrev = k

			// Price stays inside (0, 1).
			if !info.YesPrice.IsPositive() || !info.YesPrice.LessThan(decimal.NewFromInt(1)) {
				t.Fatalf("run %d step %d: price %s out of range", run, step, info.YesPrice)
			}
		}
	}
}

// Buying a side and immediately converting everything back cannot yield more
// collateral than went in: the fee plus double slippage guarantee a loss.
func TestProperties_RoundTripNeverProfits(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 25; i++ {
		f := newFixture(t)
		trader := f.fund(t, 500)
		start := f.ledger.BalanceOf(trader)

		amount := decimal.NewFromInt(rng.Int63n(10_000_000) + 1)
		if _, err := f.market.Buy(trader, domain.SideYes, amount); err != nil {
			t.Fatalf("buy: %v", err)
		}

		// Swap half the YES into NO, then burn whatever pairs exist.
		pos := f.market.BalancesOf(trader)
		half, _ := pos.Yes.QuoRem(decimal.NewFromInt(2), 0)
		if half.IsPositive() {
			if _, err := f.market.Swap(trader, domain.SideYes, half); err != nil {
				t.Fatalf("swap: %v", err)
			}
		}
		pos = f.market.BalancesOf(trader)
		pair := decimal.Min(pos.Yes, pos.No)
		if pair.IsPositive() {
			if _, err := f.market.BurnPairs(trader, pair); err != nil {
				t.Fatalf("burn: %v", err)
			}
		}

		end := f.ledger.BalanceOf(trader)
		if end.GreaterThan(start) {
			t.Fatalf("amount %s: round trip profited %s -> %s", amount, start, end)
		}
		f.checkConservation(t)
	}
}

// After resolution, the vault must cover every winning balance in full: the
// engine never promises payouts it cannot make.
func TestProperties_VaultCoversAllWinners(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for run := 0; run < 10; run++ {
		f := newFixture(t)
		traders := make([]uuid.UUID, 5)
		for i := range traders {
			traders[i] = f.fund(t, 500)
		}

		for step := 0; step < 40; step++ {
			trader := traders[rng.Intn(len(traders))]
			side := domain.SideYes
			if rng.Intn(2) == 0 {
				side = domain.SideNo
			}
			amount := decimal.NewFromInt(rng.Int63n(3_000_000) + 1)
			if _, err := f.market.Buy(trader, side, amount); err != nil {
				t.Fatalf("buy: %v", err)
			}
		}

		f.advance(2 * time.Hour)
		outcome := domain.SideYes
		if rng.Intn(2) == 0 {
			outcome = domain.SideNo
		}
		if _, err := f.market.Resolve(f.resolver, outcome); err != nil {
			t.Fatalf("resolve: %v", err)
		}

		owed := decimal.Zero
		for _, tr := range traders {
			owed = owed.Add(f.market.BalancesOf(tr).Of(outcome))
		}
		if f.market.Info().Vault.LessThan(owed) {
			t.Fatalf("run %d: vault %s cannot cover %s owed to winners",
				run, f.market.Info().Vault, owed)
		}

		// Every winner actually gets paid.
		for _, tr := range traders {
			if f.market.BalancesOf(tr).Of(outcome).IsZero() {
				continue
			}
			if _, err := f.market.Redeem(tr); err != nil {
				t.Fatalf("run %d: redeem: %v", run, err)
			}
		}
		f.checkConservation(t)
	}
}
