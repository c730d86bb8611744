package main

import (
	"log"

	"eurocredit/services/creditd"
)

func main() {
	if err := creditd.Main(); err != nil {
		log.Fatalf("creditd: %v", err)
	}
}
