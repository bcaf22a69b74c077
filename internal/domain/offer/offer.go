package offer

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrOfferUnavailable = errors.New("no active offer for product")

// Offer is a supplier's priced, stocked listing for a product variant.
// Offers are immutable per read; suppliers update them out of band.
type Offer struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	VariantID        string          `json:"variant_id,omitempty"`
	SupplierID       string          `json:"supplier_id"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency"`
	StockQuantity    int             `json:"stock_quantity"`
	MinOrderQuantity int             `json:"min_order_quantity"`
	LeadTimeDays     int             `json:"lead_time_days"`
	IsActive         bool            `json:"is_active"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Availability is the resolved stock picture for a product variant.
type Availability struct {
	Quantity          int
	LowStockThreshold int
	// FromInventory is true when an inventory record exists; false means the
	// figure came from the best offer's stock quantity.
	FromInventory bool
}
