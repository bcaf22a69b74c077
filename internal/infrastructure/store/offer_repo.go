package store

import (
	"context"
	"database/sql"

	"github.com/example/storefront/internal/domain/offer"
)

type OfferRepository struct {
	db *sql.DB
}

func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// BestOffer returns the cheapest active offer for a product variant, or nil
// when no supplier currently lists it.
func (r *OfferRepository) BestOffer(ctx context.Context, productID, variantID string) (*offer.Offer, error) {
	query := `
		SELECT id, product_id, variant_id, supplier_id, price, currency,
		       stock_quantity, min_order_quantity, lead_time_days, is_active, updated_at
		FROM offers
		WHERE product_id = $1 AND variant_id = $2 AND is_active = TRUE
		ORDER BY price ASC
		LIMIT 1`

	var o offer.Offer
	err := r.db.QueryRowContext(ctx, query, productID, variantID).Scan(
		&o.ID, &o.ProductID, &o.VariantID, &o.SupplierID, &o.Price, &o.Currency,
		&o.StockQuantity, &o.MinOrderQuantity, &o.LeadTimeDays, &o.IsActive, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByProduct returns every active offer for a product variant, cheapest
// first, for supplier comparison views.
func (r *OfferRepository) ListByProduct(ctx context.Context, productID, variantID string) ([]offer.Offer, error) {
	query := `
		SELECT id, product_id, variant_id, supplier_id, price, currency,
		       stock_quantity, min_order_quantity, lead_time_days, is_active, updated_at
		FROM offers
		WHERE product_id = $1 AND variant_id = $2 AND is_active = TRUE
		ORDER BY price ASC`

	rows, err := r.db.QueryContext(ctx, query, productID, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []offer.Offer
	for rows.Next() {
		var o offer.Offer
		if err := rows.Scan(
			&o.ID, &o.ProductID, &o.VariantID, &o.SupplierID, &o.Price, &o.Currency,
			&o.StockQuantity, &o.MinOrderQuantity, &o.LeadTimeDays, &o.IsActive, &o.UpdatedAt,
		); err != nil {
			return nil, err
		}
		offers = append(offers, o)
	}
	return offers, rows.Err()
}
