package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"estate-inquiries-backend/internal/env"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
)

var (
	upgrader    websocket.Upgrader
	redisClient *redis.Client
)

func init() {
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	redisClient = redis.NewClient(&redis.Options{
		Addr:     env.Get(env.InquiryRedisURL),
		Password: env.Get(env.InquiryRedisPass),
		DB:       0,
	})
}

// channelFor maps a conversation to its Redis pub/sub channel, the bridge
// between the REST nodes that persist events and the socket nodes that
// fan them out.
func channelFor(conversationID string) string {
	return "inquiry:conversation:" + conversationID
}

type Handler struct {
	hub         *Hub
	redisClient *redis.Client
}

func NewHandler(h *Hub) *Handler {
	return &Handler{
		hub:         h,
		redisClient: redisClient,
	}
}

func (h *Handler) subscribeToConversation(conversationID string) {
	subscriber := h.redisClient.Subscribe(context.Background(), channelFor(conversationID))
	defer subscriber.Close()

	ch := subscriber.Channel()
	for msg := range ch {
		h.hub.Broadcast <- &Frame{
			ConversationID: conversationID,
			Payload:        json.RawMessage(msg.Payload),
			Timestamp:      time.Now().Unix(),
		}
	}
	log.Printf("Unsubscribed from conversation channel %s", conversationID)
}

// EnsureRoom creates the broadcast group for a conversation and starts
// the Redis bridge for it, once.
func (h *Handler) EnsureRoom(conversationID string) {
	if created := h.hub.EnsureRoom(conversationID); created {
		go h.subscribeToConversation(conversationID)
	}
}

// JoinRoom upgrades the request and registers the connection in the
// conversation's room. Authorization happened upstream; membership here
// is transport only.
func (h *Handler) JoinRoom(w http.ResponseWriter, r *http.Request, conversationID, userID string) {
	h.EnsureRoom(conversationID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cl := &WSClient{
		Conn:    conn,
		Message: make(chan *Frame, 10),
		ID:      userID,
		RoomID:  conversationID,
		done:    make(chan struct{}),
	}

	h.hub.Register <- cl

	go cl.keepAlive()
	go cl.writeFrames()
	go cl.readFrames(h.hub)
}

func (h *Handler) GetRooms(w http.ResponseWriter, r *http.Request) {
	rooms := make([]RoomRes, 0)
	for _, id := range h.hub.RoomIDs() {
		rooms = append(rooms, RoomRes{ID: id})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(rooms)
}
