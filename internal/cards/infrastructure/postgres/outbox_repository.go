package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/types"
)

// OutboxRepository implements domain.OutboxRepository using PostgreSQL.
// Events are written in the same transaction as the card changes
// and published later by the outbox relay.
type OutboxRepository struct {
	db Executor
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(db Executor) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Append adds an event to the outbox.
func (r *OutboxRepository) Append(ctx context.Context, entry *domain.OutboxEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO bank.outbox (event_id, event_type, aggregate_id, correlation_id, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID.String(),
		entry.EventType,
		entry.AggregateID,
		textFromString(entry.CorrelationID.String()),
		entry.Payload,
		entry.OccurredAt,
	)
	return err
}

// FetchUnpublished retrieves unpublished events in insertion order.
// Rows are locked with FOR UPDATE SKIP LOCKED so concurrent relays do not collide
// when called inside a transaction.
func (r *OutboxRepository) FetchUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_id, event_type, aggregate_id, correlation_id, payload, occurred_at, published_at
		FROM bank.outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.OutboxEntry
	for rows.Next() {
		var (
			eventID       string
			eventType     string
			aggregateID   string
			correlationID pgtype.Text
			payload       []byte
			occurredAt    time.Time
			publishedAt   pgtype.Timestamptz
		)
		if err := rows.Scan(&eventID, &eventType, &aggregateID, &correlationID, &payload, &occurredAt, &publishedAt); err != nil {
			return nil, err
		}
		published, err := timestamptzToTimePtr(publishedAt)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid published_at: %v", domain.ErrCorruptData, err)
		}

		entries = append(entries, &domain.OutboxEntry{
			ID:            types.EventID(eventID),
			EventType:     eventType,
			AggregateID:   aggregateID,
			CorrelationID: types.CorrelationID(correlationID.String),
			Payload:       payload,
			OccurredAt:    occurredAt.UTC(),
			PublishedAt:   published,
		})
	}
	return entries, rows.Err()
}

// MarkPublished marks events as published. It is a no-op for an empty list.
func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []types.EventID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	stringIDs := make([]string, len(ids))
	for i, id := range ids {
		stringIDs[i] = id.String()
	}

	_, err := r.db.Exec(ctx, `
		UPDATE bank.outbox SET published_at = $1
		WHERE event_id = ANY($2) AND published_at IS NULL`,
		at, stringIDs,
	)
	return err
}

// CountUnpublished returns the number of events not yet published.
func (r *OutboxRepository) CountUnpublished(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bank.outbox WHERE published_at IS NULL`).Scan(&count)
	return count, err
}

// Verify interface implementation.
var _ domain.OutboxRepository = (*OutboxRepository)(nil)
