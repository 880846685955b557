// Package main provides the CLI for the Bridgeport reader and transformer.
package main

import (
	"os"

	"github.com/leapstack-labs/bridgeport/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
