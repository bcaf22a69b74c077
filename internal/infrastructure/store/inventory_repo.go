package store

import (
	"context"
	"database/sql"

	"github.com/example/storefront/internal/domain/inventory"
)

type InventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Get returns the inventory record for a product variant, or nil when the
// variant is not tracked.
func (r *InventoryRepository) Get(ctx context.Context, productID, variantID string) (*inventory.Record, error) {
	query := `
		SELECT product_id, variant_id, quantity, reserved_quantity, low_stock_threshold
		FROM inventory
		WHERE product_id = $1 AND variant_id = $2`

	var rec inventory.Record
	err := r.db.QueryRowContext(ctx, query, productID, variantID).Scan(
		&rec.ProductID, &rec.VariantID, &rec.Quantity, &rec.ReservedQuantity, &rec.LowStockThreshold,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Upsert writes an inventory record, used by stock sync jobs.
func (r *InventoryRepository) Upsert(ctx context.Context, rec *inventory.Record) error {
	query := `
		INSERT INTO inventory (product_id, variant_id, quantity, reserved_quantity, low_stock_threshold, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (product_id, variant_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			reserved_quantity = EXCLUDED.reserved_quantity,
			low_stock_threshold = EXCLUDED.low_stock_threshold,
			updated_at = now()`

	_, err := r.db.ExecContext(ctx, query,
		rec.ProductID, rec.VariantID, rec.Quantity, rec.ReservedQuantity, rec.LowStockThreshold)
	return err
}
