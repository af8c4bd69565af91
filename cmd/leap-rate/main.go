package main

import (
	"os"

	"leap-rate-go/cmd/leap-rate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
