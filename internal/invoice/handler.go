package invoice

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/user"
	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/outbox"
)

// Mailer sends the order confirmation.
type Mailer interface {
	SendOrderConfirmation(to string, o email.ConfirmationOrder) error
}

// Handler consumes order.placed events: it writes the invoice row and sends
// the confirmation email. Both run outside the checkout transaction, so a
// failure here never rolls back an order; the dispatcher redelivers instead.
type Handler struct {
	invoices Repository
	users    user.Repository
	products catalog.Repository
	mailer   Mailer
	log      *logrus.Entry
}

func NewHandler(invoices Repository, users user.Repository, products catalog.Repository, mailer Mailer, log *logrus.Logger) *Handler {
	return &Handler{
		invoices: invoices,
		users:    users,
		products: products,
		mailer:   mailer,
		log:      log.WithField("component", "invoicer"),
	}
}

// HandleEvent processes one message from the order events topic.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope outbox.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		h.log.WithError(err).Error("failed to unmarshal envelope")
		return err
	}

	if envelope.EventType != order.EventOrderPlaced {
		return nil
	}
	return h.handleOrderPlaced(ctx, envelope.Data)
}

func (h *Handler) handleOrderPlaced(ctx context.Context, data []byte) error {
	var e order.PlacedEvent
	if err := json.Unmarshal(data, &e); err != nil {
		h.log.WithError(err).Error("failed to unmarshal order.placed event")
		return err
	}

	log := h.log.WithFields(logrus.Fields{
		"order_id":     e.OrderID,
		"order_number": e.OrderNumber,
	})

	inv := &Invoice{
		ID:            uuid.New().String(),
		InvoiceNumber: NewInvoiceNumber(e.OrderNumber),
		OrderID:       e.OrderID,
		Total:         e.Total,
		IssuedAt:      time.Now().UTC(),
	}
	if err := h.invoices.Create(ctx, inv); err != nil {
		log.WithError(err).Error("failed to create invoice")
		return err
	}
	log.WithField("invoice_number", inv.InvoiceNumber).Info("invoice created")

	// Anonymous checkouts have no account email; the invoice row alone is
	// the deliverable then.
	u, err := h.users.GetByID(ctx, e.Owner)
	if err != nil {
		log.WithError(err).Error("failed to load user")
		return err
	}
	if u == nil {
		log.Info("owner has no account, skipping confirmation email")
		return nil
	}

	items := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		name := item.ProductID
		if p, err := h.products.GetByID(ctx, item.ProductID); err == nil && p != nil {
			name = p.Name
		}
		items[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}

	if err := h.mailer.SendOrderConfirmation(u.Email, email.ConfirmationOrder{
		OrderNumber: e.OrderNumber,
		Total:       e.Total,
		Items:       items,
	}); err != nil {
		log.WithError(err).Error("failed to send confirmation email")
		return err
	}

	log.WithField("email", u.Email).Info("order confirmation email sent")
	return nil
}
