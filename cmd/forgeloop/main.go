package main

import (
	"os"

	"github.com/forgeloop/forgeloop/internal/interface/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
