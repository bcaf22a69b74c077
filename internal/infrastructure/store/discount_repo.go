package store

import (
	"context"
	"database/sql"

	"github.com/example/storefront/internal/domain/discount"
)

type DiscountRepository struct {
	db *sql.DB
}

func NewDiscountRepository(db *sql.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

// GetByCode returns nil when the code is unknown.
func (r *DiscountRepository) GetByCode(ctx context.Context, code string) (*discount.Discount, error) {
	var d discount.Discount
	err := r.db.QueryRowContext(ctx,
		`SELECT code, kind, value FROM discounts WHERE code = $1`, code,
	).Scan(&d.Code, &d.Kind, &d.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
