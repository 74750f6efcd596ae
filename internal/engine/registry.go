package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/resolver"
)

// BankFactory builds the collateral-custody capability for one market.  The
// returned Bank holds funds under the market's own ledger account.
type BankFactory func(marketID uuid.UUID) Bank

// Registry owns the live set of markets.  It is the only component that
// creates markets, and it drives automated resolution for markets that have a
// decider attached.
type Registry struct {
	mu       sync.RWMutex
	markets  map[uuid.UUID]*Market
	deciders map[uuid.UUID]resolver.Decider

	newBank  BankFactory
	notifier Notifier

	minSeed          decimal.Decimal
	protocolShareBps int64
	protocolAccount  uuid.UUID
}

// RegistryConfig carries the engine-wide policy knobs shared by all markets.
type RegistryConfig struct {
	MinSeed          decimal.Decimal
	ProtocolShareBps int64
	ProtocolAccount  uuid.UUID
}

// NewRegistry builds an empty registry.
func NewRegistry(newBank BankFactory, notifier Notifier, cfg RegistryConfig) *Registry {
	return &Registry{
		markets:          make(map[uuid.UUID]*Market),
		deciders:         make(map[uuid.UUID]resolver.Decider),
		newBank:          newBank,
		notifier:         notifier,
		minSeed:          cfg.MinSeed,
		protocolShareBps: cfg.ProtocolShareBps,
		protocolAccount:  cfg.ProtocolAccount,
	}
}

// CreateParams is the caller-supplied part of market creation.
type CreateParams struct {
	Question string
	Creator  uuid.UUID
	Resolver uuid.UUID
	FeeBps   int64
	Duration time.Duration
	Seed     decimal.Decimal
}

// Create validates the parameters, pulls the seed collateral from the creator
// and registers the new market.
func (r *Registry) Create(p CreateParams) (*Market, error) {
	if p.Seed.LessThan(r.minSeed) {
		return nil, domain.ErrSeedTooSmall
	}

	id := uuid.New()
	m, err := NewMarket(NewMarketParams{
		ID:               id,
		Question:         p.Question,
		Creator:          p.Creator,
		Resolver:         p.Resolver,
		FeeBps:           p.FeeBps,
		Duration:         p.Duration,
		Seed:             p.Seed,
		Bank:             r.newBank(id),
		Notifier:         r.notifier,
		ProtocolShareBps: r.protocolShareBps,
		ProtocolAccount:  r.protocolAccount,
	})
	if err != nil {
		return nil, fmt.Errorf("engine.Create: %w", err)
	}

	r.mu.Lock()
	r.markets[id] = m
	r.mu.Unlock()

	slog.Info("market created", "market", id, "question", p.Question,
		"fee_bps", p.FeeBps, "seed", p.Seed, "resolver", p.Resolver)
	return m, nil
}

// Get returns the market with the given id.
func (r *Registry) Get(id uuid.UUID) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.markets[id]
	if !ok {
		return nil, domain.ErrMarketNotFound
	}
	return m, nil
}

// List returns snapshots of all markets, newest first.
func (r *Registry) List() []domain.MarketInfo {
	r.mu.RLock()
	markets := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		markets = append(markets, m)
	}
	r.mu.RUnlock()

	infos := make([]domain.MarketInfo, 0, len(markets))
	for _, m := range markets {
		infos = append(infos, m.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}

// AttachDecider registers an automated outcome source for a market.  Markets
// without a decider resolve only through the manual resolve endpoint.
func (r *Registry) AttachDecider(id uuid.UUID, d resolver.Decider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.markets[id]; !ok {
		return domain.ErrMarketNotFound
	}
	r.deciders[id] = d
	return nil
}

// SweepDue resolves every past-deadline market that has a decider attached.
// Decider errors are logged and retried on the next sweep; a decider that
// returns ErrOutcomeNotSet is simply not ready yet.
func (r *Registry) SweepDue(ctx context.Context, now time.Time) {
	r.mu.RLock()
	type due struct {
		m *Market
		d resolver.Decider
	}
	var pending []due
	for id, m := range r.markets {
		if d, ok := r.deciders[id]; ok && m.DueForResolution(now) {
			pending = append(pending, due{m, d})
		}
	}
	r.mu.RUnlock()

	for _, p := range pending {
		outcome, err := p.d.Decide(ctx, p.m.Info())
		if err != nil {
			if !errors.Is(err, domain.ErrOutcomeNotSet) {
				slog.Warn("decider failed", "market", p.m.ID(), "error", err)
			}
			continue
		}
		if _, err := p.m.Resolve(p.m.ResolverID(), outcome); err != nil {
			slog.Error("auto-resolve failed", "market", p.m.ID(), "error", err)
			continue
		}
		slog.Info("market auto-resolved", "market", p.m.ID(), "outcome", outcome)
	}
}
