package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/example/storefront/internal/outbox"
)

type OutboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// ClaimDue claims up to limit due pending events and bumps their attempt
// count in the same statement. SKIP LOCKED lets multiple dispatcher
// instances drain the table without claiming the same rows.
func (r *OutboxRepository) ClaimDue(ctx context.Context, limit int) ([]outbox.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE outbox_events
		SET attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $1 AND next_attempt_at <= now()
			ORDER BY id ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, aggregate_id, payload, status, attempts, last_error, next_attempt_at, created_at`,
		outbox.StatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(
			&e.ID, &e.EventType, &e.AggregateID, &e.Payload,
			&e.Status, &e.Attempts, &e.LastError, &e.NextAttempt, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = $2, last_error = '' WHERE id = $1`,
		id, outbox.StatusSent)
	return err
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, nextAttempt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET next_attempt_at = $2, last_error = $3 WHERE id = $1`,
		id, nextAttempt, lastError)
	return err
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id int64, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET status = $2, last_error = $3 WHERE id = $1`,
		id, outbox.StatusDead, lastError)
	return err
}
