package domain

import (
	"encoding/json"
	"time"

	"bankcards/internal/common/types"
)

// Event types for the cards context.
const (
	EventTypeCardCreated        = "card.created"
	EventTypeCardStatusChanged  = "card.status_changed"
	EventTypeCardBlockRequested = "card.block_requested"
	EventTypeCardDeleted        = "card.deleted"
	EventTypeTransferCompleted  = "transfer.completed"
)

// CardCreatedEvent is emitted when an administrator issues a card.
type CardCreatedEvent struct {
	CardID       string      `json:"card_id"`
	OwnerID      string      `json:"owner_id"`
	MaskedNumber string      `json:"masked_number"`
	ExpiresAt    string      `json:"expires_at"`
	Balance      types.Money `json:"balance"`
}

// CardStatusChangedEvent is emitted on any status change, including block requests.
type CardStatusChangedEvent struct {
	CardID     string `json:"card_id"`
	OwnerID    string `json:"owner_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// CardDeletedEvent is emitted when a card is removed.
type CardDeletedEvent struct {
	CardID string `json:"card_id"`
}

// TransferCompletedEvent is emitted when a transfer is committed.
type TransferCompletedEvent struct {
	TransferID string      `json:"transfer_id"`
	UserID     string      `json:"user_id"`
	FromCardID string      `json:"from_card_id"`
	ToCardID   string      `json:"to_card_id"`
	Amount     types.Money `json:"amount"`
}

// NewOutboxEntry wraps payload in an event envelope ready for the outbox.
func NewOutboxEntry(
	eventType string,
	aggregateID string,
	correlationID types.CorrelationID,
	payload any,
	now time.Time,
) (*OutboxEntry, error) {
	envelope, err := types.NewEventEnvelope(eventType, aggregateID, correlationID, now, payload)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	return &OutboxEntry{
		ID:            envelope.EventID,
		EventType:     eventType,
		AggregateID:   aggregateID,
		CorrelationID: correlationID,
		Payload:       body,
		OccurredAt:    envelope.OccurredAt,
	}, nil
}

// NewCardCreatedOutboxEntry creates an outbox entry for a newly issued card.
func NewCardCreatedOutboxEntry(card *Card, correlationID types.CorrelationID, now time.Time) (*OutboxEntry, error) {
	return NewOutboxEntry(EventTypeCardCreated, card.ID().String(), correlationID, CardCreatedEvent{
		CardID:       card.ID().String(),
		OwnerID:      card.OwnerID().String(),
		MaskedNumber: card.MaskedNumber(),
		ExpiresAt:    card.ExpiresAt().Format(time.DateOnly),
		Balance:      card.Balance(),
	}, now)
}

// NewCardStatusChangedOutboxEntry creates an outbox entry for a status change.
// Block requests use EventTypeCardBlockRequested.
func NewCardStatusChangedOutboxEntry(
	card *Card,
	from CardStatus,
	correlationID types.CorrelationID,
	now time.Time,
) (*OutboxEntry, error) {
	eventType := EventTypeCardStatusChanged
	if from == CardStatusActive && card.Status() == CardStatusPendingBlock {
		eventType = EventTypeCardBlockRequested
	}
	return NewOutboxEntry(eventType, card.ID().String(), correlationID, CardStatusChangedEvent{
		CardID:     card.ID().String(),
		OwnerID:    card.OwnerID().String(),
		FromStatus: from.String(),
		ToStatus:   card.Status().String(),
	}, now)
}

// NewCardDeletedOutboxEntry creates an outbox entry for a deleted card.
func NewCardDeletedOutboxEntry(id CardID, correlationID types.CorrelationID, now time.Time) (*OutboxEntry, error) {
	return NewOutboxEntry(EventTypeCardDeleted, id.String(), correlationID, CardDeletedEvent{
		CardID: id.String(),
	}, now)
}

// NewTransferCompletedOutboxEntry creates an outbox entry for a committed transfer.
func NewTransferCompletedOutboxEntry(t *Transfer, correlationID types.CorrelationID) (*OutboxEntry, error) {
	return NewOutboxEntry(EventTypeTransferCompleted, t.ID().String(), correlationID, TransferCompletedEvent{
		TransferID: t.ID().String(),
		UserID:     t.UserID().String(),
		FromCardID: t.FromCardID().String(),
		ToCardID:   t.ToCardID().String(),
		Amount:     t.Amount(),
	}, t.CreatedAt())
}
