package main

import (
	"os"

	"github.com/ppiankov/readdigest/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
