package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/domain/cart"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// GetByOwner returns the owner's cart with all line items, or nil when the
// owner has no cart yet.
func (r *CartRepository) GetByOwner(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	query := `
		SELECT id, owner_user_id, owner_session_id, discount_code, created_at, updated_at
		FROM carts
		WHERE owner_user_id = $1 AND owner_session_id = $2`

	// Exactly one of the owner columns is set per cart; the other is ''.
	userID, sessionID := ownerColumns(owner)

	var c cart.Cart
	err := r.db.QueryRowContext(ctx, query, userID, sessionID).Scan(
		&c.ID, &c.Owner.UserID, &c.Owner.SessionID, &c.DiscountCode, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return &c, nil
}

func (r *CartRepository) Create(ctx context.Context, owner cart.Owner) (*cart.Cart, error) {
	userID, sessionID := ownerColumns(owner)
	now := time.Now().UTC()

	c := &cart.Cart{
		ID:        uuid.New().String(),
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO carts (id, owner_user_id, owner_session_id, discount_code, created_at, updated_at)
		VALUES ($1, $2, $3, '', $4, $4)`,
		c.ID, userID, sessionID, now)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CartRepository) GetItem(ctx context.Context, cartID, itemID string) (*cart.LineItem, error) {
	query := itemSelect + ` WHERE cart_id = $1 AND id = $2`
	return r.scanItem(r.db.QueryRowContext(ctx, query, cartID, itemID))
}

func (r *CartRepository) FindItem(ctx context.Context, cartID, productID, variantID string) (*cart.LineItem, error) {
	query := itemSelect + ` WHERE cart_id = $1 AND product_id = $2 AND variant_id = $3`
	return r.scanItem(r.db.QueryRowContext(ctx, query, cartID, productID, variantID))
}

func (r *CartRepository) InsertItem(ctx context.Context, item *cart.LineItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, price_snapshot, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.CartID, item.ProductID, item.VariantID,
		item.Quantity, item.PriceSnapshot, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return err
	}
	return r.touch(ctx, item.CartID)
}

func (r *CartRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int, snapshot decimal.Decimal) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cart_items SET quantity = $2, price_snapshot = $3, updated_at = now()
		WHERE id = $1`,
		itemID, quantity, snapshot)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return cart.ErrLineItemNotFound
	}
	return nil
}

func (r *CartRepository) DeleteItem(ctx context.Context, itemID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return cart.ErrLineItemNotFound
	}
	return nil
}

func (r *CartRepository) ClearItems(ctx context.Context, cartID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	return r.touch(ctx, cartID)
}

func (r *CartRepository) SetDiscountCode(ctx context.Context, cartID, code string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE carts SET discount_code = $2, updated_at = now() WHERE id = $1`,
		cartID, code)
	return err
}

const itemSelect = `
	SELECT id, cart_id, product_id, variant_id, quantity, price_snapshot, created_at, updated_at
	FROM cart_items`

func (r *CartRepository) listItems(ctx context.Context, cartID string) ([]cart.LineItem, error) {
	rows, err := r.db.QueryContext(ctx, itemSelect+` WHERE cart_id = $1 ORDER BY created_at ASC`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []cart.LineItem
	for rows.Next() {
		var item cart.LineItem
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.VariantID,
			&item.Quantity, &item.PriceSnapshot, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CartRepository) scanItem(row *sql.Row) (*cart.LineItem, error) {
	var item cart.LineItem
	err := row.Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.VariantID,
		&item.Quantity, &item.PriceSnapshot, &item.CreatedAt, &item.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *CartRepository) touch(ctx context.Context, cartID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	return err
}

// ownerColumns splits an owner into its storage columns. Authenticated carts
// key on user id only so the same user on two devices resolves one cart.
func ownerColumns(owner cart.Owner) (userID, sessionID string) {
	if owner.IsAuthenticated() {
		return owner.UserID, ""
	}
	return "", owner.SessionID
}
