package main

import (
	"os"

	"github.com/rustyeddy/macrotrader/cmd/macrotrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
