package main

import (
	"os"

	"github.com/pulsekeep/pulsekeep/enrichworker"
)

func main() {
	if err := enrichworker.Run(); err != nil {
		os.Exit(1)
	}
}
