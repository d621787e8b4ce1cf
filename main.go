package main

import (
	"os"

	"github.com/quantarc/tickstore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
