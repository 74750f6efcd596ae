package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sideforge/binarymarket/internal/domain"
)

// TradeRepository handles all database operations for the trade event journal.
type TradeRepository struct {
	db *sqlx.DB
}

// NewTradeRepository creates a new TradeRepository.
func NewTradeRepository(db *sqlx.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// InsertEvent appends one engine event to the journal.
func (r *TradeRepository) InsertEvent(ctx context.Context, ev domain.Event) error {
	query := `
		INSERT INTO events
			(id, type, market_id, actor, side,
			 amount_in, fee, minted, swap_out, payout,
			 reserve_yes, reserve_no, vault, fee_pool, at)
		VALUES
			(:id, :type, :market_id, :actor, :side,
			 :amount_in, :fee, :minted, :swap_out, :payout,
			 :reserve_yes, :reserve_no, :vault, :fee_pool, :at)`
	if _, err := r.db.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("trade_repo.InsertEvent: %w", err)
	}
	return nil
}

// ListByMarket returns a market's events, newest first, paginated.
func (r *TradeRepository) ListByMarket(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM events WHERE market_id = $1 ORDER BY at DESC LIMIT $2 OFFSET $3`,
		marketID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trade_repo.ListByMarket: %w", err)
	}
	return events, nil
}

// ListByActor returns a participant's trade history across markets.
func (r *TradeRepository) ListByActor(ctx context.Context, actor uuid.UUID, limit, offset int) ([]*domain.Event, error) {
	var events []*domain.Event
	err := r.db.SelectContext(ctx, &events,
		`SELECT * FROM events WHERE actor = $1 ORDER BY at DESC LIMIT $2 OFFSET $3`,
		actor, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("trade_repo.ListByActor: %w", err)
	}
	return events, nil
}

// FinanceReport holds aggregated financial data for a date range.  Amounts
// are kept as strings to preserve decimal precision in JSON.
type FinanceReport struct {
	From          time.Time `json:"from"`
	To            time.Time `json:"to"`
	GrossVolume   string    `json:"gross_volume"`
	FeesAccrued   string    `json:"fees_accrued"`
	FeesWithdrawn string    `json:"fees_withdrawn"`
	Redeemed      string    `json:"redeemed"`
	BuyCount      int       `json:"buy_count"`
	SwapCount     int       `json:"swap_count"`
}

// GetFinanceReport aggregates the event journal for a date range.
func (r *TradeRepository) GetFinanceReport(ctx context.Context, from, to time.Time) (*FinanceReport, error) {
	type row struct {
		GrossVolume   string `db:"gross_volume"`
		FeesAccrued   string `db:"fees_accrued"`
		FeesWithdrawn string `db:"fees_withdrawn"`
		Redeemed      string `db:"redeemed"`
		BuyCount      int    `db:"buy_count"`
		SwapCount     int    `db:"swap_count"`
	}
	var agg row
	err := r.db.GetContext(ctx, &agg, `
		SELECT
			COALESCE(SUM(amount_in) FILTER (WHERE type = 'buy'), 0)::text        AS gross_volume,
			COALESCE(SUM(fee)       FILTER (WHERE type = 'buy'), 0)::text        AS fees_accrued,
			COALESCE(SUM(payout) FILTER (WHERE type = 'fees_withdrawn'), 0)::text AS fees_withdrawn,
			COALESCE(SUM(payout) FILTER (WHERE type = 'redeemed'), 0)::text       AS redeemed,
			COUNT(*) FILTER (WHERE type = 'buy')  AS buy_count,
			COUNT(*) FILTER (WHERE type = 'swap') AS swap_count
		FROM events
		WHERE at >= $1 AND at < $2`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("trade_repo.GetFinanceReport: %w", err)
	}

	return &FinanceReport{
		From:          from,
		To:            to,
		GrossVolume:   agg.GrossVolume,
		FeesAccrued:   agg.FeesAccrued,
		FeesWithdrawn: agg.FeesWithdrawn,
		Redeemed:      agg.Redeemed,
		BuyCount:      agg.BuyCount,
		SwapCount:     agg.SwapCount,
	}, nil
}
