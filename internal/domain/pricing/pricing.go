package pricing

import "github.com/shopspring/decimal"

// Config holds the storefront pricing rules: the free-shipping threshold,
// the flat shipping fee charged below it, and the flat tax rate.
type Config struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
}

// Quote is a full totals breakdown for a cart or order.
type Quote struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Total          decimal.Decimal `json:"total"`
}

// Shipping returns the shipping cost for a subtotal. Orders at or above the
// free-shipping threshold ship free; everything below pays the flat fee. An
// empty cart ships nothing and pays nothing.
func (c Config) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || subtotal.GreaterThanOrEqual(c.FreeShippingThreshold) {
		return decimal.Zero
	}
	return c.FlatShippingFee
}

// Tax computes the flat-rate tax over the discounted subtotal plus shipping,
// rounded to two decimal places.
func (c Config) Tax(subtotal, discount, shipping decimal.Decimal) decimal.Decimal {
	base := subtotal.Sub(discount).Add(shipping)
	if base.IsNegative() {
		base = decimal.Zero
	}
	return base.Mul(c.TaxRate).Round(2)
}

// Compute builds the full quote from a subtotal and discount amount.
func (c Config) Compute(subtotal, discount decimal.Decimal) Quote {
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	shipping := c.Shipping(subtotal)
	tax := c.Tax(subtotal, discount, shipping)
	return Quote{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		ShippingCost:   shipping,
		TaxAmount:      tax,
		Total:          subtotal.Sub(discount).Add(shipping).Add(tax),
	}
}
