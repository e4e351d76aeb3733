package main

import (
	"os"

	"github.com/alpaquero/alpaquero/cmd/alpaquero/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
