package main

import (
	"os"

	"github.com/rustyeddy/momentum/cmd/momentum/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
