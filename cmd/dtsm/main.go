package main

import (
	"os"

	"github.com/bianoble/dtsm/cmd/dtsm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
