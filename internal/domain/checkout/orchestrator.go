package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/discount"
	"github.com/example/storefront/internal/domain/offer"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/pricing"
)

// Finalizer atomically persists an order: order row, order items, the
// conditional inventory decrements, the outbox event, and the cart clear all
// commit together or not at all. Implementations return
// cart.InsufficientStockError when a decrement finds less stock than the
// pre-check saw, which rolls back everything.
type Finalizer interface {
	FinalizeOrder(ctx context.Context, o *order.Order, cartID string) error
}

// Orchestrator runs the single hardened checkout flow. It never trusts
// client-supplied prices or stock: every line is re-priced and re-validated
// against live offer and inventory data before the transaction, and the
// transaction's conditional decrement is the final authority.
type Orchestrator struct {
	carts     cart.Repository
	offers    *offer.Service
	discounts *discount.Evaluator
	pricing   pricing.Config
	orders    Finalizer
	validate  *validator.Validate
	log       *logrus.Entry
}

func NewOrchestrator(
	carts cart.Repository,
	offers *offer.Service,
	discounts *discount.Evaluator,
	cfg pricing.Config,
	orders Finalizer,
	log *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		carts:     carts,
		offers:    offers,
		discounts: discounts,
		pricing:   cfg,
		orders:    orders,
		validate:  validator.New(),
		log:       log.WithField("component", "checkout"),
	}
}

// PlaceOrder converts the owner's cart into an immutable order. Steps 1-7
// are pre-condition checks and computations with no mutation; the finalizer
// then applies everything in one transaction.
func (o *Orchestrator) PlaceOrder(ctx context.Context, owner cart.Owner, req Request) (*order.Order, error) {
	c, err := o.carts.GetByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c == nil || len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	if err := o.validateAddresses(req); err != nil {
		return nil, err
	}

	status, err := order.StatusForPaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	items, subtotal, err := o.buildItems(ctx, c)
	if err != nil {
		return nil, err
	}

	discountAmount := decimal.Zero
	if c.DiscountCode != "" {
		discountAmount, err = o.discounts.Apply(ctx, c.DiscountCode, subtotal)
		if err != nil {
			return nil, err
		}
	}

	quote := o.pricing.Compute(subtotal, discountAmount)
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Equal(quote.Total) {
		return nil, fmt.Errorf("%w: submitted %s, computed %s", ErrTotalMismatch, req.ExpectedTotal, quote.Total)
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	now := time.Now()
	ord := &order.Order{
		ID:              uuid.New().String(),
		OrderNumber:     order.NewOrderNumber(now),
		Owner:           owner.Key(),
		Status:          status,
		PaymentStatus:   order.PaymentUnpaid,
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        quote.Subtotal,
		DiscountAmount:  quote.DiscountAmount,
		ShippingCost:    quote.ShippingCost,
		TaxAmount:       quote.TaxAmount,
		Total:           quote.Total,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		Notes:           req.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, item := range items {
		item.OrderID = ord.ID
		ord.Items = append(ord.Items, *item)
	}

	if err := o.orders.FinalizeOrder(ctx, ord, c.ID); err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"order_number": ord.OrderNumber,
		"owner":        ord.Owner,
		"total":        ord.Total.String(),
		"items":        len(ord.Items),
	}).Info("order placed")

	return ord, nil
}

func (o *Orchestrator) validateAddresses(req Request) error {
	if err := o.validate.Struct(req.ShippingAddress); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if req.BillingAddress != nil {
		if err := o.validate.Struct(req.BillingAddress); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
		}
	}
	return nil
}

// buildItems re-prices every cart line against the live best offer and
// verifies stock sufficiency. The first failure aborts the whole checkout;
// there are no partial orders.
func (o *Orchestrator) buildItems(ctx context.Context, c *cart.Cart) ([]*order.Item, decimal.Decimal, error) {
	items := make([]*order.Item, 0, len(c.Items))
	subtotal := decimal.Zero

	for _, line := range c.Items {
		best, err := o.offers.LiveBestOffer(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if !best.Price.Equal(line.PriceSnapshot) {
			return nil, decimal.Zero, &PriceChangedError{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Snapshot:  line.PriceSnapshot,
				Current:   best.Price,
			}
		}

		avail, err := o.offers.Available(ctx, line.ProductID, line.VariantID)
		if err != nil {
			return nil, decimal.Zero, err
		}
		if line.Quantity > avail.Quantity {
			return nil, decimal.Zero, &cart.InsufficientStockError{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Requested: line.Quantity,
				Available: avail.Quantity,
			}
		}

		lineTotal := best.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, &order.Item{
			ID:         uuid.New().String(),
			ProductID:  line.ProductID,
			VariantID:  line.VariantID,
			Quantity:   line.Quantity,
			UnitPrice:  best.Price,
			TotalPrice: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	return items, subtotal, nil
}
