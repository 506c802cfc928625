package inquiry

import (
	"estate-inquiries-backend/internal/model"
)

type EventType string

const (
	EventMessageCreated EventType = "message_created"
	EventReadAck        EventType = "read_ack"
	EventReassigned     EventType = "reassigned"
	EventArchived       EventType = "archived"
	EventDeleted        EventType = "deleted"
)

// Event is the payload fanned out to everyone joined to a conversation's
// room. The bus is best effort: the store is authoritative and a client
// that misses events reconciles by re-fetching.
type Event struct {
	Type           EventType          `json:"type"`
	ConversationID string             `json:"conversationId"`
	Message        *model.MessageItem `json:"message,omitempty"`
	Role           model.Role         `json:"role,omitempty"`
	UserID         string             `json:"userId,omitempty"`
}

// Publisher delivers events into a conversation's broadcast group.
// Implementations must not be relied on for durability.
type Publisher interface {
	Publish(conversationID string, event Event) error
}

// NopPublisher drops every event. Used in tests and in binaries that have
// no realtime side.
type NopPublisher struct{}

func (NopPublisher) Publish(string, Event) error { return nil }
