// Package scheduler manages the three background goroutines that run the
// market lifecycle:
//  1. resolutionLoop sweeps past-deadline markets with attached deciders
//     every 5 seconds.
//  2. snapshotLoop mirrors live market state into Postgres every 30s.
//  3. priceBroadcastLoop pushes live prices to WS clients every second.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sideforge/binarymarket/internal/engine"
	"github.com/sideforge/binarymarket/internal/repository"
	"github.com/sideforge/binarymarket/internal/ws"
)

const (
	resolutionInterval = 5 * time.Second
	snapshotInterval   = 30 * time.Second
	broadcastInterval  = 1 * time.Second
)

// ──────────────────────────────────────────────────────────────────────────────
// WsHub interface — minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// WsHub defines the broadcast operation the Scheduler needs from the WebSocket
// hub.  Declared here so the scheduler package does not depend on the hub
// implementation.
type WsHub interface {
	BroadcastPriceUpdate(msg ws.PriceUpdateMessage)
}

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler runs the market lifecycle goroutines.  Call Start(ctx) once from
// main(); cancel the context to shut it down gracefully.  markets may be nil
// when persistence is disabled; hub may be nil in tests.
type Scheduler struct {
	registry *engine.Registry
	markets  *repository.MarketRepository
	hub      WsHub
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	registry *engine.Registry,
	markets *repository.MarketRepository,
	hub WsHub,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		registry: registry,
		markets:  markets,
		hub:      hub,
		logger:   logger,
	}
}

// Start launches the background goroutines.  It returns immediately;
// all loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.resolutionLoop(ctx)
	if s.markets != nil {
		go s.snapshotLoop(ctx)
	}
	if s.hub != nil {
		go s.priceBroadcastLoop(ctx)
	}
	s.logger.Info("scheduler started")
}

// ──────────────────────────────────────────────────────────────────────────────
// resolutionLoop
// ──────────────────────────────────────────────────────────────────────────────

// resolutionLoop sweeps due markets every 5 seconds.  Markets without a
// decider are untouched; they resolve through the manual endpoint.
func (s *Scheduler) resolutionLoop(ctx context.Context) {
	defer s.recoverAndLog("resolutionLoop")

	ticker := time.NewTicker(resolutionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("resolutionLoop: shutting down")
			return
		case <-ticker.C:
			s.registry.SweepDue(ctx, time.Now().UTC())
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// snapshotLoop
// ──────────────────────────────────────────────────────────────────────────────

// snapshotLoop mirrors every live market into the snapshot table.  The DB is
// a read replica of the in-memory engine, so losing a tick costs nothing but
// staleness.
func (s *Scheduler) snapshotLoop(ctx context.Context) {
	defer s.recoverAndLog("snapshotLoop")

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.flushSnapshots()
			s.logger.Info("snapshotLoop: shutting down")
			return
		case <-ticker.C:
			for _, info := range s.registry.List() {
				if err := s.markets.UpsertSnapshot(ctx, info); err != nil {
					s.logger.Error("snapshotLoop: upsert failed", "market", info.ID, "err", err)
				}
			}
		}
	}
}

// flushSnapshots writes one final snapshot of every market during shutdown.
func (s *Scheduler) flushSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, info := range s.registry.List() {
		if err := s.markets.UpsertSnapshot(ctx, info); err != nil {
			s.logger.Error("snapshotLoop: final upsert failed", "market", info.ID, "err", err)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// priceBroadcastLoop
// ──────────────────────────────────────────────────────────────────────────────

// priceBroadcastLoop pushes the implied price of every unresolved market to
// all connected WS clients every second.
func (s *Scheduler) priceBroadcastLoop(ctx context.Context) {
	defer s.recoverAndLog("priceBroadcastLoop")

	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("priceBroadcastLoop: shutting down")
			return
		case <-ticker.C:
			s.broadcastPrices()
		}
	}
}

// broadcastPrices is the inner body of priceBroadcastLoop, extracted so that
// the defer/recover in the loop catches panics correctly.
func (s *Scheduler) broadcastPrices() {
	now := time.Now().UTC()
	for _, info := range s.registry.List() {
		if info.Resolved {
			continue
		}
		s.hub.BroadcastPriceUpdate(ws.PriceUpdateMessage{
			Type:            ws.MsgTypePriceUpdate,
			MarketID:        info.ID,
			YesPrice:        info.YesPrice,
			ReserveYes:      info.ReserveYes,
			ReserveNo:       info.ReserveNo,
			Vault:           info.Vault,
			TimeLeftSeconds: info.TimeLeftSec,
			Timestamp:       now,
		})
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
