package cart

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/discount"
	"github.com/example/storefront/internal/domain/offer"
	"github.com/example/storefront/internal/domain/pricing"
)

// ReconciledItem is a line item annotated with live price and stock drift.
// LineTotal is price_snapshot × quantity: drift is informational until the
// shopper acts, so the billed figure never moves under them.
type ReconciledItem struct {
	LineItem
	CurrentPrice      decimal.Decimal `json:"current_price"`
	PriceChanged      bool            `json:"price_changed"`
	AvailableQuantity int             `json:"available_quantity"`
	LowStock          bool            `json:"low_stock"`
	OutOfStock        bool            `json:"out_of_stock"`
	LineTotal         decimal.Decimal `json:"line_total"`
}

// ReconciledCart is the cart view returned on every read: annotated items
// plus totals computed from snapshots, with the discount re-evaluated
// against the current subtotal.
type ReconciledCart struct {
	CartID       string           `json:"cart_id,omitempty"`
	Owner        Owner            `json:"owner"`
	Items        []ReconciledItem `json:"items"`
	DiscountCode string           `json:"discount_code,omitempty"`
	// DiscountValid is false when a stored code no longer resolves; the
	// discount then contributes zero instead of failing the read.
	DiscountValid bool `json:"discount_valid"`
	pricing.Quote
}

// Reconciler compares each line item's snapshot against the current offer
// and inventory state. It never mutates the snapshot.
type Reconciler struct {
	offers    *offer.Service
	discounts *discount.Evaluator
	pricing   pricing.Config
	log       *logrus.Entry
}

func NewReconciler(offers *offer.Service, discounts *discount.Evaluator, cfg pricing.Config, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		offers:    offers,
		discounts: discounts,
		pricing:   cfg,
		log:       log.WithField("component", "reconciler"),
	}
}

// Reconcile annotates every line item with drift and recomputes totals.
func (r *Reconciler) Reconcile(ctx context.Context, c *Cart) (*ReconciledCart, error) {
	rc := &ReconciledCart{
		CartID:        c.ID,
		Owner:         c.Owner,
		Items:         make([]ReconciledItem, 0, len(c.Items)),
		DiscountCode:  c.DiscountCode,
		DiscountValid: true,
	}

	subtotal := decimal.Zero
	for _, item := range c.Items {
		annotated, err := r.reconcileItem(ctx, item)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(annotated.LineTotal)
		rc.Items = append(rc.Items, annotated)
	}

	discountAmount := decimal.Zero
	if c.DiscountCode != "" {
		amount, err := r.discounts.Apply(ctx, c.DiscountCode, subtotal)
		switch {
		case errors.Is(err, discount.ErrInvalidDiscountCode):
			rc.DiscountValid = false
		case err != nil:
			return nil, err
		default:
			discountAmount = amount
		}
	}

	rc.Quote = r.pricing.Compute(subtotal, discountAmount)
	return rc, nil
}

func (r *Reconciler) reconcileItem(ctx context.Context, item LineItem) (ReconciledItem, error) {
	annotated := ReconciledItem{
		LineItem:     item,
		CurrentPrice: item.PriceSnapshot,
		LineTotal:    item.PriceSnapshot.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}

	best, err := r.offers.BestOffer(ctx, item.ProductID, item.VariantID)
	switch {
	case errors.Is(err, offer.ErrOfferUnavailable):
		// No active offer: nothing to compare prices against, the item is
		// effectively unbuyable until a supplier relists it.
		annotated.OutOfStock = true
	case err != nil:
		return ReconciledItem{}, err
	default:
		annotated.CurrentPrice = best.Price
		annotated.PriceChanged = !best.Price.Equal(item.PriceSnapshot)
	}

	avail, err := r.offers.Available(ctx, item.ProductID, item.VariantID)
	if err != nil {
		return ReconciledItem{}, err
	}
	annotated.AvailableQuantity = avail.Quantity
	annotated.OutOfStock = annotated.OutOfStock || avail.Quantity <= 0
	annotated.LowStock = avail.Quantity > 0 && avail.Quantity <= avail.LowStockThreshold

	return annotated, nil
}
