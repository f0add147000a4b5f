package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventEnvelope is the serialized form of a domain event in the outbox.
type EventEnvelope struct {
	EventID       EventID         `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID CorrelationID   `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope marshals payload and stamps it with a fresh EventID.
func NewEventEnvelope(
	eventType string,
	aggregateID string,
	correlationID CorrelationID,
	occurredAt time.Time,
	payload any,
) (EventEnvelope, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}

	return EventEnvelope{
		EventID:       NewEventID(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		CorrelationID: correlationID,
		Payload:       payloadBytes,
	}, nil
}

// DecodeEventEnvelope parses a stored envelope.
func DecodeEventEnvelope(data []byte) (EventEnvelope, error) {
	var e EventEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return EventEnvelope{}, fmt.Errorf("decode event envelope: %w", err)
	}
	return e, nil
}

// UnmarshalPayload decodes the payload into the target struct.
func (e EventEnvelope) UnmarshalPayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}
