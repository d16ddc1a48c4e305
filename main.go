package main

import (
	"os"

	"github.com/matrixise/token-pricer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
