package inventory

import "context"

// Record is the authoritative on-hand/reserved stock for a product variant.
// When no record exists for a product, availability falls back to the best
// offer's stock figure.
type Record struct {
	ProductID         string `json:"product_id"`
	VariantID         string `json:"variant_id,omitempty"`
	Quantity          int    `json:"quantity"`
	ReservedQuantity  int    `json:"reserved_quantity"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

// Available is on-hand minus reserved.
func (r *Record) Available() int {
	return r.Quantity - r.ReservedQuantity
}

// Repository reads inventory records. Decrements happen only inside the
// order finalization transaction, never through this interface.
type Repository interface {
	// Get returns nil when no record exists for the product/variant.
	Get(ctx context.Context, productID, variantID string) (*Record, error)
}
