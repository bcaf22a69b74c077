package discount

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidDiscountCode = errors.New("invalid discount code")

type Kind string

const (
	KindPercentage Kind = "percentage"
	KindFixed      Kind = "fixed"
)

// Discount maps a code to a reduction rule. The computed amount is always a
// function of the current subtotal and is never persisted.
type Discount struct {
	Code  string          `json:"code"`
	Kind  Kind            `json:"kind"`
	Value decimal.Decimal `json:"value"`
}

// AmountFor computes the reduction for a subtotal. Percentage rules apply
// against the subtotal; fixed rules are capped so the result never exceeds
// the subtotal.
func (d *Discount) AmountFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	switch d.Kind {
	case KindPercentage:
		return subtotal.Mul(d.Value).Div(decimal.NewFromInt(100)).Round(2)
	case KindFixed:
		if d.Value.GreaterThan(subtotal) {
			return subtotal
		}
		return d.Value
	}
	return decimal.Zero
}

// Repository reads discount rules from storage.
type Repository interface {
	// GetByCode returns nil when the code is unknown.
	GetByCode(ctx context.Context, code string) (*Discount, error)
}

// Evaluator validates codes and computes discount amounts. Callers must
// re-apply on every subtotal change; a cached amount is a correctness bug.
type Evaluator struct {
	repo Repository
}

func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo}
}

// Apply resolves the code and computes the amount for the given subtotal.
func (e *Evaluator) Apply(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	d, err := e.Lookup(ctx, code)
	if err != nil {
		return decimal.Zero, err
	}
	return d.AmountFor(subtotal), nil
}

// Lookup resolves a code to its rule, failing with ErrInvalidDiscountCode
// for unknown codes.
func (e *Evaluator) Lookup(ctx context.Context, code string) (*Discount, error) {
	if code == "" {
		return nil, ErrInvalidDiscountCode
	}
	d, err := e.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrInvalidDiscountCode
	}
	return d, nil
}
