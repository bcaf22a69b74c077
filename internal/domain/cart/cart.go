package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidProduct   = errors.New("product_id is required")
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrLineItemNotFound = errors.New("cart line item not found")

	// ErrInsufficientStock is the sentinel for InsufficientStockError so
	// callers can match with errors.Is.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports the actual maximum so the UI can suggest a
// corrected quantity instead of guessing.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ErrBelowMinOrderQuantity is the sentinel for MinOrderQuantityError.
var ErrBelowMinOrderQuantity = errors.New("below minimum order quantity")

type MinOrderQuantityError struct {
	ProductID string
	Minimum   int
}

func (e *MinOrderQuantityError) Error() string {
	return fmt.Sprintf("product %s requires a minimum order quantity of %d", e.ProductID, e.Minimum)
}

func (e *MinOrderQuantityError) Is(target error) bool {
	return target == ErrBelowMinOrderQuantity
}

// Owner identifies who a cart belongs to: an authenticated user or an
// anonymous device session. It is threaded explicitly through every cart
// operation; there is no ambient identity lookup.
type Owner struct {
	UserID    string `json:"user_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func (o Owner) IsAuthenticated() bool { return o.UserID != "" }

func (o Owner) IsZero() bool { return o.UserID == "" && o.SessionID == "" }

// Key returns the identity string used as the order owner reference.
func (o Owner) Key() string {
	if o.UserID != "" {
		return o.UserID
	}
	return o.SessionID
}

// Cart is one shopper's persisted cart. Exactly one exists per owner
// identity, created lazily on the first item add.
type Cart struct {
	ID           string     `json:"id"`
	Owner        Owner      `json:"owner"`
	DiscountCode string     `json:"discount_code,omitempty"`
	Items        []LineItem `json:"items"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// LineItem is a product selection with the price snapshot captured when the
// shopper added or last edited it. The snapshot is the billing basis until
// checkout re-prices against the live offer; live price drift is surfaced by
// the reconciler, never silently applied.
type LineItem struct {
	ID            string          `json:"id"`
	CartID        string          `json:"cart_id"`
	ProductID     string          `json:"product_id"`
	VariantID     string          `json:"variant_id,omitempty"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"price_snapshot"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Subtotal is Σ(price_snapshot × quantity) over all items.
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.PriceSnapshot.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return subtotal
}

// Repository persists carts and line items. At most one line item may exist
// per (cart_id, product_id, variant_id); the store enforces it and the
// database backs it with a unique index.
type Repository interface {
	// GetByOwner returns the owner's cart with items, or nil when none exists.
	GetByOwner(ctx context.Context, owner Owner) (*Cart, error)
	Create(ctx context.Context, owner Owner) (*Cart, error)

	// GetItem returns nil when the item does not exist in the cart.
	GetItem(ctx context.Context, cartID, itemID string) (*LineItem, error)
	// FindItem locates an item by product/variant key, nil when absent.
	FindItem(ctx context.Context, cartID, productID, variantID string) (*LineItem, error)
	InsertItem(ctx context.Context, item *LineItem) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int, snapshot decimal.Decimal) error
	DeleteItem(ctx context.Context, itemID string) error
	ClearItems(ctx context.Context, cartID string) error

	SetDiscountCode(ctx context.Context, cartID, code string) error
}
