package invoice

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/user"
	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/outbox"
)

// ============================================
// Test fakes
// ============================================

type fakeInvoiceRepo struct {
	Created []*Invoice
}

func (f *fakeInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	f.Created = append(f.Created, inv)
	return nil
}

type fakeUserRepo struct {
	users map[string]*user.User
}

func (f *fakeUserRepo) Create(context.Context, *user.User) error { return nil }

func (f *fakeUserRepo) GetByEmail(context.Context, string) (*user.User, error) { return nil, nil }

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

type fakeProductRepo struct {
	products map[string]*catalog.Product
}

func (f *fakeProductRepo) List(context.Context) ([]catalog.Product, error) { return nil, nil }

func (f *fakeProductRepo) GetByID(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

type fakeMailer struct {
	Sent []struct {
		To    string
		Order email.ConfirmationOrder
	}
}

func (f *fakeMailer) SendOrderConfirmation(to string, o email.ConfirmationOrder) error {
	f.Sent = append(f.Sent, struct {
		To    string
		Order email.ConfirmationOrder
	}{to, o})
	return nil
}

type invoiceFixture struct {
	handler  *Handler
	invoices *fakeInvoiceRepo
	mailer   *fakeMailer
}

func newInvoiceFixture(users map[string]*user.User, products map[string]*catalog.Product) *invoiceFixture {
	log := logrus.New()
	log.SetOutput(io.Discard)

	if users == nil {
		users = map[string]*user.User{}
	}
	if products == nil {
		products = map[string]*catalog.Product{}
	}
	invoices := &fakeInvoiceRepo{}
	mailer := &fakeMailer{}
	handler := NewHandler(invoices, &fakeUserRepo{users: users}, &fakeProductRepo{products: products}, mailer, log)

	return &invoiceFixture{handler: handler, invoices: invoices, mailer: mailer}
}

func placedMessage(t *testing.T, e order.PlacedEvent) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.Envelope{
		EventType:   order.EventOrderPlaced,
		AggregateID: e.OrderID,
		Data:        data,
	})
	require.NoError(t, err)
	return payload
}

// ============================================
// HandleEvent Tests
// ============================================

func TestHandler_CreatesInvoiceAndSendsEmail(t *testing.T) {
	f := newInvoiceFixture(
		map[string]*user.User{"user-1": {ID: "user-1", Email: "ada@example.com"}},
		map[string]*catalog.Product{"prod-1": {ID: "prod-1", Name: "Mechanical Keyboard"}},
	)

	event := order.PlacedEvent{
		OrderID:     "order-1",
		OrderNumber: "ORD-20260829-ABCD1234",
		Owner:       "user-1",
		Status:      order.StatusPendingPayment,
		Total:       decimal.RequireFromString("269.88"),
		Items: []order.PlacedEventItem{
			{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.RequireFromString("100.00")},
		},
		PlacedAt: time.Now(),
	}

	err := f.handler.HandleEvent(context.Background(), []byte("order-1"), placedMessage(t, event))

	require.NoError(t, err)
	require.Len(t, f.invoices.Created, 1)
	inv := f.invoices.Created[0]
	assert.Equal(t, "INV-ORD-20260829-ABCD1234", inv.InvoiceNumber)
	assert.Equal(t, "order-1", inv.OrderID)
	assert.True(t, inv.Total.Equal(event.Total))

	require.Len(t, f.mailer.Sent, 1)
	sent := f.mailer.Sent[0]
	assert.Equal(t, "ada@example.com", sent.To)
	assert.Equal(t, "ORD-20260829-ABCD1234", sent.Order.OrderNumber)
	require.Len(t, sent.Order.Items, 1)
	assert.Equal(t, "Mechanical Keyboard", sent.Order.Items[0].Name)
}

func TestHandler_AnonymousOwnerSkipsEmail(t *testing.T) {
	f := newInvoiceFixture(nil, nil)

	event := order.PlacedEvent{
		OrderID:     "order-2",
		OrderNumber: "ORD-20260829-00000002",
		Owner:       "sess-anonymous",
		Total:       decimal.RequireFromString("50.00"),
	}

	err := f.handler.HandleEvent(context.Background(), []byte("order-2"), placedMessage(t, event))

	require.NoError(t, err, "no account email is not a failure")
	assert.Len(t, f.invoices.Created, 1, "the invoice is still written")
	assert.Empty(t, f.mailer.Sent)
}

func TestHandler_IgnoresOtherEventTypes(t *testing.T) {
	f := newInvoiceFixture(nil, nil)

	payload, err := json.Marshal(outbox.Envelope{EventType: "order.cancelled", AggregateID: "order-3"})
	require.NoError(t, err)

	err = f.handler.HandleEvent(context.Background(), []byte("order-3"), payload)

	require.NoError(t, err)
	assert.Empty(t, f.invoices.Created)
	assert.Empty(t, f.mailer.Sent)
}

func TestHandler_MalformedPayload(t *testing.T) {
	f := newInvoiceFixture(nil, nil)

	err := f.handler.HandleEvent(context.Background(), nil, []byte("not json"))
	assert.Error(t, err)
}

func TestHandler_UnknownProductFallsBackToID(t *testing.T) {
	f := newInvoiceFixture(
		map[string]*user.User{"user-1": {ID: "user-1", Email: "ada@example.com"}},
		nil,
	)

	event := order.PlacedEvent{
		OrderID:     "order-4",
		OrderNumber: "ORD-20260829-00000004",
		Owner:       "user-1",
		Total:       decimal.RequireFromString("10.00"),
		Items:       []order.PlacedEventItem{{ProductID: "prod-gone", Quantity: 1}},
	}

	err := f.handler.HandleEvent(context.Background(), []byte("order-4"), placedMessage(t, event))

	require.NoError(t, err)
	require.Len(t, f.mailer.Sent, 1)
	assert.Equal(t, "prod-gone", f.mailer.Sent[0].Order.Items[0].Name)
}
