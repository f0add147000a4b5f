package application

import (
	"context"
	"fmt"
	"time"

	"bankcards/internal/cards/domain"
	"bankcards/internal/common/logging"
	"bankcards/internal/common/metrics"
	"bankcards/internal/common/types"
)

const defaultRelayBatchSize = 100

// Publisher delivers an outbox entry to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, entry *domain.OutboxEntry) error
}

// LogPublisher publishes events as structured log lines.
type LogPublisher struct{}

// Publish logs the event envelope.
func (LogPublisher) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	ctx = logging.WithCorrelationID(ctx, entry.CorrelationID)
	logging.InfoContext(ctx, "Domain event published",
		"event_id", entry.ID.String(),
		"event_type", entry.EventType,
		"aggregate_id", entry.AggregateID,
		"payload", string(entry.Payload),
	)
	return nil
}

// OutboxRelay moves committed outbox entries to a Publisher.
// Delivery is at-least-once: an entry is marked published only after Publish succeeds.
type OutboxRelay struct {
	dataStore DataStore
	publisher Publisher
	batchSize int
	now       func() time.Time
}

// NewOutboxRelay creates a relay draining dataStore's outbox into publisher.
func NewOutboxRelay(dataStore DataStore, publisher Publisher, opts ...Option) *OutboxRelay {
	o := buildOptions(opts)
	return &OutboxRelay{
		dataStore: dataStore,
		publisher: publisher,
		batchSize: defaultRelayBatchSize,
		now:       o.now,
	}
}

// RelayOnce publishes one batch of unpublished entries and returns how many were published.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.dataStore.Outbox().FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}

	published := make([]types.EventID, 0, len(entries))
	var publishErr error
	for _, entry := range entries {
		if err := r.publisher.Publish(ctx, entry); err != nil {
			publishErr = fmt.Errorf("publish %s: %w", entry.ID, err)
			break
		}
		published = append(published, entry.ID)
	}

	if len(published) > 0 {
		if err := r.dataStore.Outbox().MarkPublished(ctx, published, r.now()); err != nil {
			return 0, fmt.Errorf("mark published: %w", err)
		}
	}

	if len(entries) > 0 {
		oldest := entries[0].OccurredAt
		metrics.OutboxOldestUnpublishedAge.Set(r.now().Sub(oldest).Seconds())
	} else {
		metrics.OutboxOldestUnpublishedAge.Set(0)
	}
	if pending, err := r.dataStore.Outbox().CountUnpublished(ctx); err == nil {
		metrics.OutboxPendingEvents.Set(float64(pending))
	}

	return len(published), publishErr
}

// Run relays batches every interval until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RelayOnce(ctx)
			if err != nil && ctx.Err() == nil {
				logging.ErrorContext(ctx, "Outbox relay failed", "error", err, "published", n)
				continue
			}
			if n > 0 {
				logging.DebugContext(ctx, "Outbox batch relayed", "published", n)
			}
		}
	}
}
