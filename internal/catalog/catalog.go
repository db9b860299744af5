// Package catalog reads priced catalog entries used to prefill line items.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/SGK112/CRM-sub002/internal/platform/httpx"
)

// PriceItem is a catalog entry.
type PriceItem struct {
	ID               int64           `json:"id"`
	WorkspaceID      int64           `json:"workspace_id"`
	Name             string          `json:"name"`
	SKU              string          `json:"sku"`
	BaseCost         decimal.Decimal `json:"base_cost"`
	DefaultMarginPct decimal.Decimal `json:"default_margin_pct"`
}

// Repository loads price items.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lookup returns the price item scoped to the workspace.
func (r *Repository) Lookup(ctx context.Context, workspaceID, id int64) (*PriceItem, error) {
	const query = `SELECT id, workspace_id, name, sku, base_cost, default_margin_pct
		FROM price_items WHERE workspace_id = $1 AND id = $2`
	var item PriceItem
	err := r.pool.QueryRow(ctx, query, workspaceID, id).Scan(
		&item.ID, &item.WorkspaceID, &item.Name, &item.SKU, &item.BaseCost, &item.DefaultMarginPct,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("price item %d: %w", id, httpx.ErrNotFound)
		}
		return nil, fmt.Errorf("catalog: lookup: %w", err)
	}
	return &item, nil
}
