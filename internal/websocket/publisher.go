package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"estate-inquiries-backend/internal/service/inquiry"
)

// Publish pushes a payload onto a conversation's Redis channel. Every
// socket node subscribed to that conversation relays it into its local
// room.
func Publish(conversationID string, payload interface{}) error {
	if conversationID == "" {
		return fmt.Errorf("websocket publish: conversationID required")
	}
	if redisClient == nil {
		return fmt.Errorf("websocket publish: redis client not initialised")
	}

	messageJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("websocket publish: marshal payload: %w", err)
	}

	if err := redisClient.Publish(context.Background(), channelFor(conversationID), string(messageJSON)).Err(); err != nil {
		return fmt.Errorf("websocket publish: redis publish: %w", err)
	}
	return nil
}

// EventBus adapts Publish to the conversation service's publisher
// interface.
type EventBus struct{}

func (EventBus) Publish(conversationID string, event inquiry.Event) error {
	return Publish(conversationID, event)
}
