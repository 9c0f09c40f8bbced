package websocket

import (
	"encoding/json"
	"strings"
	"time"
)

// Event names pushed to clients, formatted "<entity>.<action>"
const (
	TransactionCreatedEvent = "transaction.created"
	TransactionUpdatedEvent = "transaction.updated"
	TransactionDeletedEvent = "transaction.deleted"
	RecurringCreatedEvent   = "recurring.created"
	RecurringUpdatedEvent   = "recurring.updated"
	RecurringDeletedEvent   = "recurring.deleted"
	ProjectionSyncedEvent   = "projection.synced"
)

// Event is the message envelope sent to connected clients
type Event struct {
	Type      string      `json:"type"`
	Entity    string      `json:"entity"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent builds an event; the entity is taken from the type prefix
func NewEvent(eventType string, payload interface{}) Event {
	entity, _, _ := strings.Cut(eventType, ".")
	return Event{
		Type:      eventType,
		Entity:    entity,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
