package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/outbox"
)

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// FinalizeOrder commits a checkout in one transaction: the order and its
// items are inserted, stock is decremented conditionally per item, the
// order.placed event is written to the outbox, and the cart is emptied.
// A decrement that would go negative aborts the whole transaction, so a
// concurrent checkout racing for the last unit fails cleanly instead of
// overselling.
func (r *OrderRepository) FinalizeOrder(ctx context.Context, o *order.Order, cartID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	billing, err := json.Marshal(o.BillingAddress)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, order_number, owner, status, payment_status, payment_method,
			subtotal, discount_amount, shipping_cost, tax_amount, total,
			shipping_address, billing_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`,
		o.ID, o.OrderNumber, o.Owner, o.Status, o.PaymentStatus, o.PaymentMethod,
		o.Subtotal, o.DiscountAmount, o.ShippingCost, o.TaxAmount, o.Total,
		shipping, billing, o.Notes, o.CreatedAt)
	if err != nil {
		return err
	}

	for _, item := range o.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, variant_id, quantity, unit_price, total_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			item.ID, item.OrderID, item.ProductID, item.VariantID,
			item.Quantity, item.UnitPrice, item.TotalPrice)
		if err != nil {
			return err
		}

		if err := r.decrementStock(ctx, tx, item); err != nil {
			return err
		}
	}

	data, err := json.Marshal(placedEvent(o))
	if err != nil {
		return err
	}
	payload, err := json.Marshal(outbox.Envelope{
		EventType:   order.EventOrderPlaced,
		AggregateID: o.ID,
		Data:        data,
	})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_events (event_type, aggregate_id, payload, status, next_attempt_at)
		VALUES ($1, $2, $3, $4, now())`,
		order.EventOrderPlaced, o.ID, payload, outbox.StatusPending)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE carts SET discount_code = '', updated_at = now() WHERE id = $1`, cartID); err != nil {
		return err
	}

	return tx.Commit()
}

// decrementStock applies a conditional decrement: zero rows affected means
// another checkout took the stock first. Variants with an inventory record
// decrement there; untracked variants fall back to the best offer's stock.
func (r *OrderRepository) decrementStock(ctx context.Context, tx *sql.Tx, item order.Item) error {
	var tracked bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM inventory WHERE product_id = $1 AND variant_id = $2)`,
		item.ProductID, item.VariantID).Scan(&tracked)
	if err != nil {
		return err
	}

	if tracked {
		res, err := tx.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity - $3, updated_at = now()
			WHERE product_id = $1 AND variant_id = $2 AND quantity - reserved_quantity >= $3`,
			item.ProductID, item.VariantID, item.Quantity)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return r.insufficientStock(ctx, tx, item, `
				SELECT COALESCE(quantity - reserved_quantity, 0) FROM inventory
				WHERE product_id = $1 AND variant_id = $2`)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE offers
		SET stock_quantity = stock_quantity - $3, updated_at = now()
		WHERE id = (
			SELECT id FROM offers
			WHERE product_id = $1 AND variant_id = $2 AND is_active = TRUE AND stock_quantity >= $3
			ORDER BY price ASC
			LIMIT 1
		)`,
		item.ProductID, item.VariantID, item.Quantity)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.insufficientStock(ctx, tx, item, `
			SELECT COALESCE(MAX(stock_quantity), 0) FROM offers
			WHERE product_id = $1 AND variant_id = $2 AND is_active = TRUE`)
	}
	return nil
}

func (r *OrderRepository) insufficientStock(ctx context.Context, tx *sql.Tx, item order.Item, availableQuery string) error {
	var available int
	if err := tx.QueryRowContext(ctx, availableQuery, item.ProductID, item.VariantID).Scan(&available); err != nil && err != sql.ErrNoRows {
		return err
	}
	if available < 0 {
		available = 0
	}
	return &cart.InsufficientStockError{
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Requested: item.Quantity,
		Available: available,
	}
}

func placedEvent(o *order.Order) order.PlacedEvent {
	items := make([]order.PlacedEventItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, order.PlacedEventItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order.PlacedEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Owner:       o.Owner,
		Status:      o.Status,
		Total:       o.Total,
		Items:       items,
		PlacedAt:    o.CreatedAt,
	}
}

const orderSelect = `
	SELECT id, order_number, owner, status, payment_status, payment_method,
	       subtotal, discount_amount, shipping_cost, tax_amount, total,
	       shipping_address, billing_address, notes, created_at, updated_at
	FROM orders`

// GetByID returns the order with its items, or order.ErrOrderNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	return r.getOne(ctx, orderSelect+` WHERE id = $1`, id)
}

// GetByOrderNumber returns the order with its items, or order.ErrOrderNotFound.
func (r *OrderRepository) GetByOrderNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getOne(ctx, orderSelect+` WHERE order_number = $1`, number)
}

// ListByOwner returns the owner's orders, newest first, with items.
func (r *OrderRepository) ListByOwner(ctx context.Context, owner string) ([]order.Order, error) {
	rows, err := r.db.QueryContext(ctx, orderSelect+` WHERE owner = $1 ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.listItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *OrderRepository) getOne(ctx context.Context, query string, arg any) (*order.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, order.ErrOrderNotFound
	}
	o, err := scanOrder(rows)
	if err != nil {
		return nil, err
	}

	items, err := r.listItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func scanOrder(rows *sql.Rows) (*order.Order, error) {
	var o order.Order
	var shipping, billing []byte
	err := rows.Scan(
		&o.ID, &o.OrderNumber, &o.Owner, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.Subtotal, &o.DiscountAmount, &o.ShippingCost, &o.TaxAmount, &o.Total,
		&shipping, &billing, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) listItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, variant_id, quantity, unit_price, total_price
		FROM order_items
		WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.VariantID,
			&item.Quantity, &item.UnitPrice, &item.TotalPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
