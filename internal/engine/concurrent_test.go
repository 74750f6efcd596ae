package engine_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
)

// Hammer one market from many goroutines and verify the ledgers still add up.
// Run with -race; the point is that the single market lock serialises every
// mutation and no interleaving can break conservation.
func TestConcurrent_BuysAndSwapsStayConsistent(t *testing.T) {
	f := newFixture(t)

	const traders = 8
	const opsPerTrader = 40

	ids := make([]uuid.UUID, traders)
	for i := range ids {
		ids[i] = f.fund(t, 1000)
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(n int, trader uuid.UUID) {
			defer wg.Done()
			side := domain.SideYes
			if n%2 == 0 {
				side = domain.SideNo
			}
			for op := 0; op < opsPerTrader; op++ {
				amount := decimal.NewFromInt(int64(op%500 + 1))
				if _, err := f.market.Buy(trader, side, amount); err != nil {
					t.Errorf("trader %d op %d: buy: %v", n, op, err)
					return
				}
				if op%5 == 4 {
					held := f.market.BalancesOf(trader).Of(side)
					if held.GreaterThan(decimal.NewFromInt(10)) {
						if _, err := f.market.Swap(trader, side, decimal.NewFromInt(10)); err != nil {
							t.Errorf("trader %d op %d: swap: %v", n, op, err)
							return
						}
					}
				}
			}
		}(i, id)
	}
	wg.Wait()

	f.checkConservation(t)

	// Total spend equals what the market now holds above its seed.
	spent := decimal.Zero
	for _, id := range ids {
		spent = spent.Add(domain.Units(1000).Sub(f.ledger.BalanceOf(id)))
	}
	info := f.market.Info()
	gained := info.Vault.Add(info.FeePool).Sub(domain.Units(10))
	if !spent.Equal(gained) {
		t.Errorf("traders spent %s, market gained %s", spent, gained)
	}
}

// Concurrent reads during writes must never observe a torn snapshot where
// custody and vault+fees disagree.
func TestConcurrent_SnapshotsAreConsistent(t *testing.T) {
	f := newFixture(t)
	trader := f.fund(t, 1000)

	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := f.market.Buy(trader, domain.SideYes, decimal.NewFromInt(int64(i+1))); err != nil {
				t.Errorf("buy %d: %v", i, err)
				break
			}
		}
		close(done)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			info := f.market.Info()
			// Within one snapshot the internal ledger must be coherent.
			if info.Vault.IsNegative() || info.FeePool.IsNegative() {
				t.Errorf("negative balances in snapshot: %+v", info)
				return
			}
			if !info.ReserveYes.IsPositive() || !info.ReserveNo.IsPositive() {
				t.Errorf("dead reserve in snapshot: %+v", info)
				return
			}
		}
	}()

	wg.Wait()
	f.checkConservation(t)
}
