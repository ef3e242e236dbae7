package main

import (
	"log"

	"amocrm-leads/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
