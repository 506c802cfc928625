package main

import (
	"estate-inquiries-backend/internal/api"
	"estate-inquiries-backend/internal/api/router"
	"estate-inquiries-backend/internal/database"
	"estate-inquiries-backend/internal/queue"
	"estate-inquiries-backend/internal/websocket"
	"log"
)

func main() {
	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run()
	handler := websocket.NewHandler(hub)

	server := api.NewAPIServer(
		":83",
		queueManager,
		db,
		handler,
		router.UtilsRoutes("/api/ws/v1"),
		router.InquiryWebsocketRoutes("/api/ws/v1"),
	)

	server.Run()
}
