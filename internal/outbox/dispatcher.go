package outbox

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher relays outbox rows to the broker with retry and exponential
// backoff. It replaces a fire-and-forget publish: side effects recorded in
// the checkout transaction survive broker outages and dispatcher crashes.
type Dispatcher struct {
	repo      Repository
	publisher Publisher
	log       *logrus.Entry

	BatchSize      int
	PollInterval   time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
}

func NewDispatcher(repo Repository, publisher Publisher, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		log:       log.WithField("component", "outbox"),

		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		MaxAttempts:    10,
		InitialBackoff: 2 * time.Second,
	}
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
			d.log.WithError(err).Error("outbox dispatch failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

// DispatchOnce claims one batch of due events and publishes each. A publish
// failure schedules a retry with exponential backoff; events past the
// attempt budget go dead instead of retrying forever.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	events, err := d.repo.ClaimDue(ctx, d.BatchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		if event.Attempts > d.MaxAttempts {
			if err := d.repo.MarkDead(ctx, event.ID, "max publish attempts exceeded"); err != nil {
				return err
			}
			d.log.WithFields(logrus.Fields{
				"event_id":   event.ID,
				"event_type": event.EventType,
			}).Error("outbox event dead")
			continue
		}

		if err := d.publisher.Publish(ctx, event.AggregateID, event.Payload); err != nil {
			next := time.Now().Add(d.backoff(event.Attempts))
			if markErr := d.repo.MarkFailed(ctx, event.ID, next, err.Error()); markErr != nil {
				return markErr
			}
			d.log.WithError(err).WithFields(logrus.Fields{
				"event_id": event.ID,
				"attempts": event.Attempts,
			}).Warn("outbox publish failed, will retry")
			continue
		}

		if err := d.repo.MarkSent(ctx, event.ID); err != nil {
			return err
		}
	}
	return nil
}

// backoff doubles per attempt: 2s, 4s, 8s, ...
func (d *Dispatcher) backoff(attempts int) time.Duration {
	delay := d.InitialBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
