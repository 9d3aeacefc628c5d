package amqp

import (
	"encoding/json"
	"time"
)

// Event kinds published on the activity exchange.
const (
	KindTxnCreated    = "txn:created"
	KindTxnArchived   = "txn:archived"
	KindBillPaid      = "bill:paid"
	KindWishReordered = "wish:reordered"
)

// EventMessage is a lightweight activity notification. It carries only ids,
// the worker fetches whatever detail it needs from the database.
type EventMessage struct {
	Kind        string    `json:"kind"`
	WorkspaceID int64     `json:"workspace_id"`
	EntityID    int64     `json:"entity_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewEventMessage creates an event stamped with the current time.
func NewEventMessage(kind string, workspaceID, entityID int64) *EventMessage {
	return &EventMessage{
		Kind:        kind,
		WorkspaceID: workspaceID,
		EntityID:    entityID,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON creates a message from JSON bytes
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
