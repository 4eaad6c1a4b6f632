package main

import (
	"log"

	"github.com/MrSnakeDoc/sweep/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ sweep failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ sweep failed: %v", err)
	}
}
