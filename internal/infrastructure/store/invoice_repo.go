package store

import (
	"context"
	"database/sql"

	"github.com/example/storefront/internal/invoice"
)

type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create inserts an invoice; a duplicate order_id is silently ignored so the
// invoicer can safely reprocess redelivered events.
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoices (id, invoice_number, order_id, total, issued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id) DO NOTHING`,
		inv.ID, inv.InvoiceNumber, inv.OrderID, inv.Total, inv.IssuedAt)
	return err
}
