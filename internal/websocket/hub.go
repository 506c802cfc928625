package websocket

import "sync"

type Hub struct {
	mu         sync.RWMutex
	Rooms      map[string]*Room
	Register   chan *WSClient
	Unregister chan *WSClient
	Broadcast  chan *Frame
}

func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *WSClient),
		Unregister: make(chan *WSClient),
		Broadcast:  make(chan *Frame),
	}
}

// EnsureRoom creates the broadcast group for a conversation if it does not
// exist yet and reports whether it was created.
func (h *Hub) EnsureRoom(conversationID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.Rooms[conversationID]; exists {
		return false
	}
	h.Rooms[conversationID] = &Room{
		ID:      conversationID,
		Clients: make(map[string]*WSClient),
	}
	setRooms(len(h.Rooms))
	return true
}

func (h *Hub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.Rooms))
	for id := range h.Rooms {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) room(id string) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.Rooms[id]
	return room, ok
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			room, ok := h.room(client.RoomID)
			if !ok {
				// Joining an unknown conversation is ignored; the handler
				// ensures the room before registering.
				continue
			}
			h.mu.Lock()
			room.Clients[client.ID] = client
			h.mu.Unlock()
			incConnections()

		case client := <-h.Unregister:
			room, ok := h.room(client.RoomID)
			if !ok {
				continue
			}
			h.mu.Lock()
			if _, ok := room.Clients[client.ID]; ok {
				delete(room.Clients, client.ID)
				close(client.Message)
				decConnections()
			}
			h.mu.Unlock()

		case frame := <-h.Broadcast:
			room, ok := h.room(frame.ConversationID)
			if !ok {
				// No one joined this conversation on this node; the store
				// is authoritative, dropping is fine.
				continue
			}
			delivered := 0
			h.mu.Lock()
			for _, client := range room.Clients {
				select {
				case client.Message <- frame:
					delivered++
				default:
					// A client that cannot keep up is evicted rather than
					// allowed to stall the room.
					close(client.Message)
					delete(room.Clients, client.ID)
					decConnections()
				}
			}
			h.mu.Unlock()
			if delivered > 0 {
				addDelivered(delivered)
			}
		}
	}
}
