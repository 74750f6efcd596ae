// Package indexer moves engine events into Postgres off the hot path.  The
// engine emits under its market lock, so Notify must never block: events go
// into a buffered channel and a single worker drains it.
package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sideforge/binarymarket/internal/domain"
	"github.com/sideforge/binarymarket/internal/repository"
)

// Indexer is the write-behind journal worker.  It satisfies the engine's
// Notifier interface.
type Indexer struct {
	trades *repository.TradeRepository
	events chan domain.Event
}

// New builds an indexer with the given queue depth.
func New(trades *repository.TradeRepository, buffer int) *Indexer {
	return &Indexer{
		trades: trades,
		events: make(chan domain.Event, buffer),
	}
}

// Notify enqueues an event without blocking.  When the queue is full the
// event is dropped and counted in the log; the journal is an audit mirror,
// not the ledger of record, so losing a record under pressure is preferable
// to stalling trades.
func (ix *Indexer) Notify(ev domain.Event) {
	select {
	case ix.events <- ev:
	default:
		slog.Warn("indexer queue full, dropping event", "type", ev.Type, "market", ev.MarketID)
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is still
// buffered with a short grace period.
func (ix *Indexer) Run(ctx context.Context) {
	slog.Info("indexer started", "buffer", cap(ix.events))
	for {
		select {
		case ev := <-ix.events:
			ix.persist(ctx, ev)
		case <-ctx.Done():
			ix.flush()
			slog.Info("indexer stopped")
			return
		}
	}
}

func (ix *Indexer) persist(ctx context.Context, ev domain.Event) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := ix.trades.InsertEvent(writeCtx, ev); err != nil {
		slog.Error("persist event failed", "type", ev.Type, "market", ev.MarketID, "error", err)
	}
}

// flush writes the remaining buffered events during shutdown.
func (ix *Indexer) flush() {
	for {
		select {
		case ev := <-ix.events:
			ix.persist(context.Background(), ev)
		default:
			return
		}
	}
}
