package main

import (
	"os"

	"github.com/nettolabs/netto/cmd/netto/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
