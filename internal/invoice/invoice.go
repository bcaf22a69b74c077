package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is generated once per placed order by the invoicer consumer.
type Invoice struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	OrderID       string          `json:"order_id"`
	Total         decimal.Decimal `json:"total"`
	IssuedAt      time.Time       `json:"issued_at"`
}

type Repository interface {
	// Create inserts the invoice. Inserting a second invoice for the same
	// order is a no-op so redelivered events stay idempotent.
	Create(ctx context.Context, inv *Invoice) error
}

// NewInvoiceNumber derives the invoice number from the order number, so the
// two documents are trivially matched in support tickets.
func NewInvoiceNumber(orderNumber string) string {
	return fmt.Sprintf("INV-%s", orderNumber)
}
