package cart

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/offer"
)

// Store owns the cart line-item lifecycle. Every mutation re-validates
// against live offer and stock data and fails fast, leaving the cart in its
// prior valid state.
type Store struct {
	carts  Repository
	offers *offer.Service
	log    *logrus.Entry
}

func NewStore(carts Repository, offers *offer.Service, log *logrus.Logger) *Store {
	return &Store{
		carts:  carts,
		offers: offers,
		log:    log.WithField("component", "cart"),
	}
}

// Get returns the owner's cart with items. Owners without a cart get an
// empty cart value rather than an error.
func (s *Store) Get(ctx context.Context, owner Owner) (*Cart, error) {
	c, err := s.carts.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &Cart{Owner: owner, Items: []LineItem{}}, nil
	}
	return c, nil
}

// AddItem adds quantity of a product to the owner's cart. If a line item for
// the same (product, variant) already exists its quantity is incremented and
// the price snapshot is refreshed to the current offer price, since the
// shopper is actively re-engaging with the product. The combined quantity is
// validated against live availability.
func (s *Store) AddItem(ctx context.Context, owner Owner, productID, variantID string, quantity int) (*LineItem, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	best, err := s.offers.BestOffer(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	avail, err := s.offers.Available(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}

	c, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return nil, err
	}

	existing, err := s.carts.FindItem(ctx, c.ID, productID, variantID)
	if err != nil {
		return nil, err
	}

	combined := quantity
	if existing != nil {
		combined += existing.Quantity
	}
	if best.MinOrderQuantity > 1 && combined < best.MinOrderQuantity {
		return nil, &MinOrderQuantityError{ProductID: productID, Minimum: best.MinOrderQuantity}
	}
	if combined > avail.Quantity {
		return nil, &InsufficientStockError{
			ProductID: productID,
			VariantID: variantID,
			Requested: combined,
			Available: avail.Quantity,
		}
	}

	if existing != nil {
		if err := s.carts.UpdateItemQuantity(ctx, existing.ID, combined, best.Price); err != nil {
			return nil, err
		}
		existing.Quantity = combined
		existing.PriceSnapshot = best.Price
		return existing, nil
	}

	now := time.Now()
	item := &LineItem{
		ID:            uuid.New().String(),
		CartID:        c.ID,
		ProductID:     productID,
		VariantID:     variantID,
		Quantity:      quantity,
		PriceSnapshot: best.Price,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.carts.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// SetQuantity changes a line item's quantity. Zero or negative removes the
// item. Increases are validated against live availability and fail with the
// actual maximum rather than silently clamping.
func (s *Store) SetQuantity(ctx context.Context, owner Owner, itemID string, quantity int) error {
	c, err := s.carts.GetByOwner(ctx, owner)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrLineItemNotFound
	}

	item, err := s.carts.GetItem(ctx, c.ID, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrLineItemNotFound
	}

	if quantity <= 0 {
		return s.carts.DeleteItem(ctx, item.ID)
	}

	avail, err := s.offers.Available(ctx, item.ProductID, item.VariantID)
	if err != nil {
		return err
	}
	if quantity > avail.Quantity {
		return &InsufficientStockError{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Requested: quantity,
			Available: avail.Quantity,
		}
	}

	// A quantity edit is the shopper acting on the line, so the snapshot is
	// refreshed to the current offer price. When no offer is active anymore
	// the old snapshot stays.
	snapshot := item.PriceSnapshot
	if best, err := s.offers.BestOffer(ctx, item.ProductID, item.VariantID); err == nil {
		snapshot = best.Price
	} else if !errors.Is(err, offer.ErrOfferUnavailable) {
		return err
	}

	return s.carts.UpdateItemQuantity(ctx, item.ID, quantity, snapshot)
}

// RemoveItem deletes a line item from the owner's cart.
func (s *Store) RemoveItem(ctx context.Context, owner Owner, itemID string) error {
	c, err := s.carts.GetByOwner(ctx, owner)
	if err != nil {
		return err
	}
	if c == nil {
		return ErrLineItemNotFound
	}

	item, err := s.carts.GetItem(ctx, c.ID, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return ErrLineItemNotFound
	}

	return s.carts.DeleteItem(ctx, item.ID)
}

// Clear removes all line items and the applied discount code. Clearing an
// owner without a cart, or an already-empty cart, is a no-op.
func (s *Store) Clear(ctx context.Context, owner Owner) error {
	c, err := s.carts.GetByOwner(ctx, owner)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if err := s.carts.ClearItems(ctx, c.ID); err != nil {
		return err
	}
	return s.carts.SetDiscountCode(ctx, c.ID, "")
}

// SetDiscount records a discount code on the owner's cart. The caller is
// expected to have validated the code; the amount itself is recomputed on
// every read.
func (s *Store) SetDiscount(ctx context.Context, owner Owner, code string) error {
	c, err := s.getOrCreate(ctx, owner)
	if err != nil {
		return err
	}
	return s.carts.SetDiscountCode(ctx, c.ID, code)
}

// RemoveDiscount clears the discount code, if any.
func (s *Store) RemoveDiscount(ctx context.Context, owner Owner) error {
	c, err := s.carts.GetByOwner(ctx, owner)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	return s.carts.SetDiscountCode(ctx, c.ID, "")
}

func (s *Store) getOrCreate(ctx context.Context, owner Owner) (*Cart, error) {
	c, err := s.carts.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c != nil {
		return c, nil
	}
	return s.carts.Create(ctx, owner)
}
