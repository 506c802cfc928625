package main

import (
	"estate-inquiries-backend/internal/api"
	"estate-inquiries-backend/internal/api/router"
	"estate-inquiries-backend/internal/database"
	"estate-inquiries-backend/internal/queue"
	"log"
)

func main() {
	queueManager := queue.NewRequestQueueManager(10, 10)
	db, err := database.NewDatabase()
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}

	server := api.NewAPIServer(
		":81",
		queueManager,
		db,
		nil,
		router.UtilsRoutes("/api/v1"),
		router.InquiryRoutes("/api/v1"),
	)

	server.Run()
}
