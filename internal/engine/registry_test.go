package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/resolver"
	"github.com/sideforge/binarymarket/internal/wallet"
)

func newTestRegistry(ledger *wallet.Ledger) *engine.Registry {
	return engine.NewRegistry(
		func(marketID uuid.UUID) engine.Bank { return wallet.NewMarketBank(ledger, marketID) },
		nil,
		engine.RegistryConfig{
			MinSeed:          domain.Units(1),
			ProtocolShareBps: 2000,
			ProtocolAccount:  uuid.New(),
		},
	)
}

func TestRegistry_CreateAndLookup(t *testing.T) {
	ledger := wallet.NewLedger()
	reg := newTestRegistry(ledger)
	creator := uuid.New()
	if err := ledger.Credit(creator, domain.Units(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	m, err := reg.Create(engine.CreateParams{
		Question: "Will the release ship this week?",
		Creator:  creator,
		Resolver: uuid.New(),
		FeeBps:   100,
		Duration: time.Hour,
		Seed:     domain.Units(10),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := reg.Get(m.ID())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.ID() != m.ID() {
		t.Errorf("Get() returned a different market")
	}

	if _, err := reg.Get(uuid.New()); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("unknown id: err = %v, want ErrMarketNotFound", err)
	}

	infos := reg.List()
	if len(infos) != 1 || infos[0].ID != m.ID() {
		t.Errorf("List() = %d markets, want exactly the created one", len(infos))
	}
}

func TestRegistry_RejectsUndersizedSeed(t *testing.T) {
	ledger := wallet.NewLedger()
	reg := newTestRegistry(ledger)

	_, err := reg.Create(engine.CreateParams{
		Question: "q",
		Creator:  uuid.New(),
		Resolver: uuid.New(),
		FeeBps:   100,
		Duration: time.Hour,
		Seed:     domain.Units(1).Sub(domain.Units(1)), // zero
	})
	if !errors.Is(err, domain.ErrSeedTooSmall) {
		t.Errorf("err = %v, want ErrSeedTooSmall", err)
	}
}

func TestRegistry_SweepResolvesDueMarkets(t *testing.T) {
	ledger := wallet.NewLedger()
	reg := newTestRegistry(ledger)
	creator := uuid.New()
	if err := ledger.Credit(creator, domain.Units(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	m, err := reg.Create(engine.CreateParams{
		Question: "auto-resolved?",
		Creator:  creator,
		Resolver: uuid.New(),
		FeeBps:   0,
		Duration: time.Hour,
		Seed:     domain.Units(5),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	manual := resolver.NewManual()
	if err := reg.AttachDecider(m.ID(), manual); err != nil {
		t.Fatalf("AttachDecider() error: %v", err)
	}
	if err := reg.AttachDecider(uuid.New(), manual); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Errorf("unknown market: err = %v, want ErrMarketNotFound", err)
	}

	past := time.Now().Add(2 * time.Hour)
	m.SetClock(func() time.Time { return past })

	// No outcome posted yet: the sweep skips the market.
	reg.SweepDue(context.Background(), past)
	if m.Resolved() {
		t.Fatal("market resolved before any outcome was posted")
	}

	if err := manual.Post(domain.SideNo); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	reg.SweepDue(context.Background(), past)
	if !m.Resolved() {
		t.Fatal("market not resolved after outcome was posted")
	}

	info := m.Info()
	if info.Outcome == nil || *info.Outcome != domain.SideNo {
		t.Errorf("outcome = %v, want NO", info.Outcome)
	}

	// The next sweep must not touch the already-resolved market.
	reg.SweepDue(context.Background(), past)
}

func TestRegistry_SweepIgnoresMarketsBeforeDeadline(t *testing.T) {
	ledger := wallet.NewLedger()
	reg := newTestRegistry(ledger)
	creator := uuid.New()
	if err := ledger.Credit(creator, domain.Units(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	m, err := reg.Create(engine.CreateParams{
		Question: "still trading",
		Creator:  creator,
		Resolver: uuid.New(),
		FeeBps:   0,
		Duration: time.Hour,
		Seed:     domain.Units(5),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	manual := resolver.NewManual()
	if err := manual.Post(domain.SideYes); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if err := reg.AttachDecider(m.ID(), manual); err != nil {
		t.Fatalf("AttachDecider() error: %v", err)
	}

	reg.SweepDue(context.Background(), time.Now())
	if m.Resolved() {
		t.Fatal("sweep resolved a market whose deadline has not passed")
	}
}
