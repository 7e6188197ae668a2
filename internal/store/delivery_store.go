package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WebhookDelivery is an append-only record of an accepted webhook delivery.
// The automation relay stores every payload it receives; the other providers
// log deliveries after authentication so redeliveries can be audited.
type WebhookDelivery struct {
	ID         string          `json:"id"`
	Provider   string          `json:"provider"`
	EventType  *string         `json:"event_type,omitempty"`
	Action     *string         `json:"action,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	ReceivedAt time.Time       `json:"received_at"`
}

// DeliveryStore provides access to the webhook delivery log.
type DeliveryStore struct {
	db *sql.DB
}

// NewDeliveryStore creates a new DeliveryStore.
func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

// Record appends a delivery to the log and returns its generated id.
func (s *DeliveryStore) Record(ctx context.Context, provider string, eventType, action *string, payload json.RawMessage) (*WebhookDelivery, error) {
	if len(payload) == 0 || string(payload) == "null" {
		payload = json.RawMessage("{}")
	}

	delivery := WebhookDelivery{
		ID:       uuid.NewString(),
		Provider: provider,
	}

	var storedEventType sql.NullString
	var storedAction sql.NullString
	var storedPayload []byte

	err := s.db.QueryRowContext(
		ctx,
		`INSERT INTO webhook_deliveries (id, provider, event_type, action, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING event_type, action, payload, received_at`,
		delivery.ID,
		provider,
		nullableString(eventType),
		nullableString(action),
		[]byte(payload),
	).Scan(
		&storedEventType,
		&storedAction,
		&storedPayload,
		&delivery.ReceivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record delivery: %w", err)
	}

	if storedEventType.Valid {
		delivery.EventType = &storedEventType.String
	}
	if storedAction.Valid {
		delivery.Action = &storedAction.String
	}
	delivery.Payload = json.RawMessage(storedPayload)

	return &delivery, nil
}
