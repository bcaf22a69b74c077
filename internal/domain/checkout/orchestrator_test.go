package checkout

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/discount"
	"github.com/example/storefront/internal/domain/inventory"
	"github.com/example/storefront/internal/domain/offer"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/pricing"
)

// ============================================
// Test fakes
// ============================================

type fakeCartRepo struct {
	cart *cart.Cart
}

func (f *fakeCartRepo) GetByOwner(_ context.Context, owner cart.Owner) (*cart.Cart, error) {
	if f.cart == nil || f.cart.Owner.Key() != owner.Key() {
		return nil, nil
	}
	out := *f.cart
	return &out, nil
}

func (f *fakeCartRepo) Create(_ context.Context, owner cart.Owner) (*cart.Cart, error) {
	f.cart = &cart.Cart{ID: "cart-" + owner.Key(), Owner: owner}
	return f.cart, nil
}

func (f *fakeCartRepo) GetItem(context.Context, string, string) (*cart.LineItem, error) {
	return nil, nil
}

func (f *fakeCartRepo) FindItem(context.Context, string, string, string) (*cart.LineItem, error) {
	return nil, nil
}

func (f *fakeCartRepo) InsertItem(context.Context, *cart.LineItem) error { return nil }

func (f *fakeCartRepo) UpdateItemQuantity(context.Context, string, int, decimal.Decimal) error {
	return nil
}

func (f *fakeCartRepo) DeleteItem(context.Context, string) error       { return nil }
func (f *fakeCartRepo) ClearItems(context.Context, string) error       { return nil }
func (f *fakeCartRepo) SetDiscountCode(context.Context, string, string) error { return nil }

type fakeOfferRepo struct {
	offers map[string]*offer.Offer
}

func key(productID, variantID string) string { return productID + "/" + variantID }

func (f *fakeOfferRepo) BestOffer(_ context.Context, productID, variantID string) (*offer.Offer, error) {
	o, ok := f.offers[key(productID, variantID)]
	if !ok {
		return nil, nil
	}
	out := *o
	return &out, nil
}

type fakeInventoryRepo struct{}

func (fakeInventoryRepo) Get(context.Context, string, string) (*inventory.Record, error) {
	return nil, nil
}

type fakeDiscountRepo struct {
	discounts map[string]*discount.Discount
}

func (f *fakeDiscountRepo) GetByCode(_ context.Context, code string) (*discount.Discount, error) {
	d, ok := f.discounts[code]
	if !ok {
		return nil, nil
	}
	return d, nil
}

// fakeFinalizer records the orders it was asked to persist.
type fakeFinalizer struct {
	FinalizeCalls []struct {
		Order  *order.Order
		CartID string
	}
	err error
}

func (f *fakeFinalizer) FinalizeOrder(_ context.Context, o *order.Order, cartID string) error {
	f.FinalizeCalls = append(f.FinalizeCalls, struct {
		Order  *order.Order
		CartID string
	}{o, cartID})
	return f.err
}

type checkoutFixture struct {
	orchestrator *Orchestrator
	carts        *fakeCartRepo
	offers       *fakeOfferRepo
	discounts    *fakeDiscountRepo
	finalizer    *fakeFinalizer
}

func newCheckoutFixture() *checkoutFixture {
	log := logrus.New()
	log.SetOutput(io.Discard)

	offers := &fakeOfferRepo{offers: make(map[string]*offer.Offer)}
	offerSvc := offer.NewService(offers, fakeInventoryRepo{}, nil, 10, log)
	discounts := &fakeDiscountRepo{discounts: make(map[string]*discount.Discount)}
	carts := &fakeCartRepo{}
	finalizer := &fakeFinalizer{}

	cfg := pricing.Config{
		FreeShippingThreshold: decimal.RequireFromString("500.00"),
		FlatShippingFee:       decimal.RequireFromString("24.90"),
		TaxRate:               decimal.RequireFromString("0.20"),
	}

	return &checkoutFixture{
		orchestrator: NewOrchestrator(carts, offerSvc, discount.NewEvaluator(discounts), cfg, finalizer, log),
		carts:        carts,
		offers:       offers,
		discounts:    discounts,
		finalizer:    finalizer,
	}
}

func (f *checkoutFixture) addOffer(productID, price string, stock int) {
	f.offers.offers[key(productID, "")] = &offer.Offer{
		ID:            "offer-" + productID,
		ProductID:     productID,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
}

func (f *checkoutFixture) setCart(owner cart.Owner, items ...cart.LineItem) {
	f.carts.cart = &cart.Cart{ID: "cart-1", Owner: owner, Items: items}
}

func line(productID string, quantity int, snapshot string) cart.LineItem {
	return cart.LineItem{
		ID:            "item-" + productID,
		CartID:        "cart-1",
		ProductID:     productID,
		Quantity:      quantity,
		PriceSnapshot: decimal.RequireFromString(snapshot),
	}
}

func validRequest() Request {
	return Request{
		ShippingAddress: order.Address{
			Name:       "Ada Lovelace",
			Line1:      "12 Analytical Way",
			City:       "London",
			PostalCode: "N1 7AA",
			Country:    "GB",
		},
		PaymentMethod: order.PaymentMethodCard,
	}
}

var testOwner = cart.Owner{UserID: "user-1"}

// ============================================
// PlaceOrder Tests
// ============================================

func TestOrchestrator_PlaceOrder_Success(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 2, "100.00"))

	ord, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())

	require.NoError(t, err)
	require.Len(t, f.finalizer.FinalizeCalls, 1)
	assert.Equal(t, "cart-1", f.finalizer.FinalizeCalls[0].CartID)

	assert.Equal(t, order.StatusPendingPayment, ord.Status)
	assert.Equal(t, order.PaymentUnpaid, ord.PaymentStatus)
	assert.Equal(t, "user-1", ord.Owner)
	require.Len(t, ord.Items, 1)
	assert.Equal(t, ord.ID, ord.Items[0].OrderID)
	assert.True(t, ord.Items[0].UnitPrice.Equal(decimal.RequireFromString("100.00")))

	// 200 subtotal, 24.90 shipping, 20% tax on 224.90 = 44.98.
	assert.True(t, ord.Subtotal.Equal(decimal.RequireFromString("200.00")))
	assert.True(t, ord.ShippingCost.Equal(decimal.RequireFromString("24.90")))
	assert.True(t, ord.TaxAmount.Equal(decimal.RequireFromString("44.98")))
	assert.True(t, ord.Total.Equal(decimal.RequireFromString("269.88")), "total %s", ord.Total)

	assert.Regexp(t, regexp.MustCompile(`^ORD-\d{8}-[0-9A-F]{8}$`), ord.OrderNumber)
}

func TestOrchestrator_PlaceOrder_FreeShippingAtThreshold(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "250.00", 10)
	f.setCart(testOwner, line("prod-1", 2, "250.00"))

	ord, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())

	require.NoError(t, err)
	assert.True(t, ord.ShippingCost.IsZero(), "500.00 exactly qualifies for free shipping")
}

func TestOrchestrator_PlaceOrder_StatusPerPaymentMethod(t *testing.T) {
	tests := []struct {
		method order.PaymentMethod
		status order.Status
	}{
		{order.PaymentMethodCard, order.StatusPendingPayment},
		{order.PaymentMethodBankTransfer, order.StatusAwaitingPayment},
		{order.PaymentMethodCashOnDelivery, order.StatusConfirmed},
	}

	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			f := newCheckoutFixture()
			f.addOffer("prod-1", "100.00", 10)
			f.setCart(testOwner, line("prod-1", 1, "100.00"))

			req := validRequest()
			req.PaymentMethod = tt.method

			ord, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, ord.Status)
		})
	}
}

func TestOrchestrator_PlaceOrder_EmptyCart(t *testing.T) {
	f := newCheckoutFixture()
	f.setCart(testOwner)

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	assert.ErrorIs(t, err, ErrEmptyCart)

	f.carts.cart = nil
	_, err = f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, f.finalizer.FinalizeCalls)
}

func TestOrchestrator_PlaceOrder_InvalidAddress(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 1, "100.00"))

	req := validRequest()
	req.ShippingAddress.PostalCode = ""

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, req)
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Empty(t, f.finalizer.FinalizeCalls)
}

func TestOrchestrator_PlaceOrder_InvalidPaymentMethod(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 1, "100.00"))

	req := validRequest()
	req.PaymentMethod = "iou"

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, req)
	assert.ErrorIs(t, err, order.ErrInvalidPaymentMethod)
}

func TestOrchestrator_PlaceOrder_BillingDefaultsToShipping(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 1, "100.00"))

	ord, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	require.NoError(t, err)
	assert.Equal(t, ord.ShippingAddress, ord.BillingAddress)
}

func TestOrchestrator_PlaceOrder_PriceDriftRejected(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "120.00", 10)
	// Snapshot predates a supplier reprice.
	f.setCart(testOwner, line("prod-1", 1, "100.00"))

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	require.ErrorIs(t, err, ErrPriceChanged)

	var priceErr *PriceChangedError
	require.ErrorAs(t, err, &priceErr)
	assert.True(t, priceErr.Snapshot.Equal(decimal.RequireFromString("100.00")))
	assert.True(t, priceErr.Current.Equal(decimal.RequireFromString("120.00")))
	assert.Empty(t, f.finalizer.FinalizeCalls, "drift must be rejected before any mutation")
}

func TestOrchestrator_PlaceOrder_InsufficientStockNamesMaximum(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 2)
	f.setCart(testOwner, line("prod-1", 5, "100.00"))

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	require.ErrorIs(t, err, cart.ErrInsufficientStock)

	var stockErr *cart.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
}

func TestOrchestrator_PlaceOrder_OfferWithdrawn(t *testing.T) {
	f := newCheckoutFixture()
	f.setCart(testOwner, line("prod-gone", 1, "100.00"))

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	assert.ErrorIs(t, err, offer.ErrOfferUnavailable)
}

func TestOrchestrator_PlaceOrder_DiscountApplied(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 2, "100.00"))
	f.carts.cart.DiscountCode = "SAVE10"
	f.discounts.discounts["SAVE10"] = &discount.Discount{
		Code: "SAVE10", Kind: discount.KindPercentage, Value: decimal.RequireFromString("10"),
	}

	ord, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	require.NoError(t, err)
	assert.True(t, ord.DiscountAmount.Equal(decimal.RequireFromString("20.00")))
	// (200 - 20 + 24.90) * 1.2 = 245.88
	assert.True(t, ord.Total.Equal(decimal.RequireFromString("245.88")), "total %s", ord.Total)
}

func TestOrchestrator_PlaceOrder_StaleDiscountFailsCheckout(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 1, "100.00"))
	f.carts.cart.DiscountCode = "EXPIRED"

	// Unlike the cart read, checkout refuses to bill with a dead code
	// applied; the shopper removes it first.
	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	assert.ErrorIs(t, err, discount.ErrInvalidDiscountCode)
}

func TestOrchestrator_PlaceOrder_ExpectedTotalMismatch(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 2, "100.00"))

	stale := decimal.RequireFromString("199.99")
	req := validRequest()
	req.ExpectedTotal = &stale

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, req)
	assert.ErrorIs(t, err, ErrTotalMismatch)
	assert.Empty(t, f.finalizer.FinalizeCalls)
}

func TestOrchestrator_PlaceOrder_ExpectedTotalMatch(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 2, "100.00"))

	expected := decimal.RequireFromString("269.88")
	req := validRequest()
	req.ExpectedTotal = &expected

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, req)
	assert.NoError(t, err)
}

func TestOrchestrator_PlaceOrder_FinalizerFailurePropagates(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 1, "100.00"))

	// The transaction lost the race for the last unit.
	f.finalizer.err = &cart.InsufficientStockError{
		ProductID: "prod-1", Requested: 1, Available: 0,
	}

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	assert.ErrorIs(t, err, cart.ErrInsufficientStock)
}

func TestOrchestrator_PlaceOrder_InfrastructureErrorPropagates(t *testing.T) {
	f := newCheckoutFixture()
	f.addOffer("prod-1", "100.00", 10)
	f.setCart(testOwner, line("prod-1", 1, "100.00"))

	f.finalizer.err = errors.New("connection reset")

	_, err := f.orchestrator.PlaceOrder(context.Background(), testOwner, validRequest())
	assert.EqualError(t, err, "connection reset")
}
