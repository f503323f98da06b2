// Package main provides the tablescribe command.
package main

import (
	"os"

	"github.com/leapstack-labs/tablescribe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
