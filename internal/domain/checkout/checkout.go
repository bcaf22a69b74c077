package checkout

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/domain/order"
)

var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrInvalidAddress = errors.New("invalid shipping address")
	// ErrTotalMismatch rejects a client-submitted total that disagrees with
	// the server-computed one. Client figures are a consistency check only,
	// never the authoritative value.
	ErrTotalMismatch = errors.New("submitted total does not match server total")

	// ErrPriceChanged is the sentinel for PriceChangedError.
	ErrPriceChanged = errors.New("price changed since item was added")
)

// PriceChangedError names the drifted item so the shopper can re-confirm at
// the live price instead of being silently re-billed.
type PriceChangedError struct {
	ProductID string
	VariantID string
	Snapshot  decimal.Decimal
	Current   decimal.Decimal
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("price for product %s changed from %s to %s since it was added",
		e.ProductID, e.Snapshot, e.Current)
}

func (e *PriceChangedError) Is(target error) bool {
	return target == ErrPriceChanged
}

// Request is the checkout payload. BillingAddress defaults to the shipping
// address when omitted. ExpectedTotal, when present, must match the
// server-computed total exactly.
type Request struct {
	ShippingAddress order.Address       `json:"shipping_address" validate:"required"`
	BillingAddress  *order.Address      `json:"billing_address,omitempty"`
	PaymentMethod   order.PaymentMethod `json:"payment_method" validate:"required"`
	Notes           string              `json:"notes,omitempty"`
	ExpectedTotal   *decimal.Decimal    `json:"expected_total,omitempty"`
}
