package main

import (
	"log"

	"github.com/gashop/shop-ledger/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatalf("shop-ledger: %v", err)
	}
}
