package main

import (
	"log"

	"github.com/cosmik-network/cardsync/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ cardsync failed to start: %v", err)
	}
}
