// Package main is the schemagen CLI entry point.
package main

import (
	"os"

	"github.com/leapstack-labs/schemagen/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
