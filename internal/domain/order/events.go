package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const EventOrderPlaced = "order.placed"

// PlacedEvent is written to the outbox inside the checkout transaction and
// published to Kafka by the dispatcher. Downstream consumers (invoice
// generation, confirmation email) run off this event; their failures never
// affect the checkout outcome.
type PlacedEvent struct {
	OrderID     string            `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Owner       string            `json:"owner"`
	Status      Status            `json:"status"`
	Total       decimal.Decimal   `json:"total"`
	Items       []PlacedEventItem `json:"items"`
	PlacedAt    time.Time         `json:"placed_at"`
}

type PlacedEventItem struct {
	ProductID string          `json:"product_id"`
	VariantID string          `json:"variant_id,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
