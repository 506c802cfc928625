package websocket

import "encoding/json"

// Room is one conversation's broadcast group.
type Room struct {
	ID      string               `json:"id"`
	Clients map[string]*WSClient `json:"clients"`
}

// Frame is the wire envelope fanned out to every connection in a room.
// Payload is the serialized conversation event; the hub never inspects it.
type Frame struct {
	ConversationID string          `json:"conversationId"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      int64           `json:"timestamp"`
}

type RoomRes struct {
	ID string `json:"id"`
}
