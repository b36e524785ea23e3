// Package main provides the leapcql command-line interface.
package main

import (
	"os"

	"github.com/leapstack-labs/leapcql/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
