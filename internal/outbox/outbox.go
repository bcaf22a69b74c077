package outbox

import (
	"context"
	"encoding/json"
	"time"
)

// Event statuses. Pending rows are eligible for dispatch; sent rows are
// done; dead rows exceeded the attempt budget and need operator attention.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusDead    = "dead"
)

// Event is a row in the outbox table, written in the same transaction as the
// state change it announces.
type Event struct {
	ID          int64
	EventType   string
	AggregateID string
	Payload     []byte
	Status      string
	Attempts    int
	LastError   string
	NextAttempt time.Time
	CreatedAt   time.Time
}

// Envelope is the wire format for outbox payloads. Consumers dispatch on
// EventType before unmarshaling Data.
type Envelope struct {
	EventType   string          `json:"event_type"`
	AggregateID string          `json:"aggregate_id"`
	Data        json.RawMessage `json:"data"`
}

// Repository claims and resolves outbox rows.
type Repository interface {
	// ClaimDue atomically claims up to limit due pending events, bumping
	// their attempt count so a crashed dispatcher cannot replay them
	// unbounded.
	ClaimDue(ctx context.Context, limit int) ([]Event, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, nextAttempt time.Time, lastError string) error
	MarkDead(ctx context.Context, id int64, lastError string) error
}

// Publisher delivers a claimed event to the message broker.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}
