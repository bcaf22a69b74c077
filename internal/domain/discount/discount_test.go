package discount

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	discounts map[string]*Discount
}

func (f *fakeRepo) GetByCode(_ context.Context, code string) (*Discount, error) {
	return f.discounts[code], nil
}

func newTestEvaluator() *Evaluator {
	return NewEvaluator(&fakeRepo{discounts: map[string]*Discount{
		"SAVE10": {Code: "SAVE10", Kind: KindPercentage, Value: decimal.NewFromInt(10)},
		"FLAT50": {Code: "FLAT50", Kind: KindFixed, Value: decimal.NewFromInt(50)},
	}})
}

func TestEvaluator_Apply_Percentage(t *testing.T) {
	e := newTestEvaluator()

	amount, err := e.Apply(context.Background(), "SAVE10", decimal.RequireFromString("299.90"))

	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.RequireFromString("29.99")), "got %s", amount)
}

func TestEvaluator_Apply_Fixed(t *testing.T) {
	e := newTestEvaluator()

	amount, err := e.Apply(context.Background(), "FLAT50", decimal.RequireFromString("120.00"))

	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(50)))
}

func TestEvaluator_Apply_FixedCappedAtSubtotal(t *testing.T) {
	e := newTestEvaluator()

	amount, err := e.Apply(context.Background(), "FLAT50", decimal.RequireFromString("30.00"))

	require.NoError(t, err)
	assert.True(t, amount.Equal(decimal.NewFromInt(30)))
}

func TestEvaluator_Apply_UnknownCode(t *testing.T) {
	e := newTestEvaluator()

	_, err := e.Apply(context.Background(), "NOPE", decimal.NewFromInt(100))

	assert.ErrorIs(t, err, ErrInvalidDiscountCode)
}

func TestEvaluator_Apply_EmptyCode(t *testing.T) {
	e := newTestEvaluator()

	_, err := e.Apply(context.Background(), "", decimal.NewFromInt(100))

	assert.ErrorIs(t, err, ErrInvalidDiscountCode)
}

func TestEvaluator_Apply_RecomputesPerSubtotal(t *testing.T) {
	e := newTestEvaluator()
	ctx := context.Background()

	// Same code, changing subtotal: the amount must track the latest subtotal.
	first, err := e.Apply(ctx, "SAVE10", decimal.NewFromInt(300))
	require.NoError(t, err)
	second, err := e.Apply(ctx, "SAVE10", decimal.NewFromInt(100))
	require.NoError(t, err)

	assert.True(t, first.Equal(decimal.NewFromInt(30)))
	assert.True(t, second.Equal(decimal.NewFromInt(10)))
}

func TestDiscount_AmountFor_ZeroSubtotal(t *testing.T) {
	d := &Discount{Code: "FLAT50", Kind: KindFixed, Value: decimal.NewFromInt(50)}

	assert.True(t, d.AmountFor(decimal.Zero).IsZero())
}
