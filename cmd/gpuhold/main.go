package main

import (
	"os"

	"github.com/gpuhold/gpuhold/cmd/gpuhold/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
