// Package repository persists market snapshots and the trade event journal to
// Postgres.  The live engine is the source of truth; these tables are a
// write-behind mirror for restarts, reporting and external consumers.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sideforge/binarymarket/internal/domain"
)

// MarketRepository handles all database operations for market snapshots.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// UpsertSnapshot writes the current state of a market, inserting on first
// sight and overwriting on every subsequent snapshot.
func (r *MarketRepository) UpsertSnapshot(ctx context.Context, info domain.MarketInfo) error {
	query := `
		INSERT INTO markets
			(id, question, resolver_id, fee_bps, deadline,
			 vault, reserve_yes, reserve_no, fee_pool, yes_price,
			 resolved, outcome, created_at, updated_at)
		VALUES
			(:id, :question, :resolver_id, :fee_bps, :deadline,
			 :vault, :reserve_yes, :reserve_no, :fee_pool, :yes_price,
			 :resolved, :outcome, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			vault       = EXCLUDED.vault,
			reserve_yes = EXCLUDED.reserve_yes,
			reserve_no  = EXCLUDED.reserve_no,
			fee_pool    = EXCLUDED.fee_pool,
			yes_price   = EXCLUDED.yes_price,
			resolved    = EXCLUDED.resolved,
			outcome     = EXCLUDED.outcome,
			updated_at  = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, info); err != nil {
		return fmt.Errorf("market_repo.UpsertSnapshot: %w", err)
	}
	return nil
}

// GetByID fetches a market snapshot by its primary key.
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MarketInfo, error) {
	var info domain.MarketInfo
	err := r.db.GetContext(ctx, &info, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	return &info, nil
}

// List returns a paginated slice of market snapshots, optionally filtered to
// open (unresolved) or resolved markets.  Returns (snapshots, total, error).
func (r *MarketRepository) List(ctx context.Context, limit, offset int, resolved *bool) ([]*domain.MarketInfo, int, error) {
	var infos []*domain.MarketInfo
	var total int

	if resolved != nil {
		if err := r.db.GetContext(ctx, &total,
			`SELECT COUNT(*) FROM markets WHERE resolved = $1`, *resolved); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &infos,
			`SELECT * FROM markets WHERE resolved = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			*resolved, limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	} else {
		if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM markets`); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
		}
		if err := r.db.SelectContext(ctx, &infos,
			`SELECT * FROM markets ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset); err != nil {
			return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
		}
	}
	return infos, total, nil
}
