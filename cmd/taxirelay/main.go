// Package main is the entry point for the taxirelay CLI.
// It plans, allocates and simulates fuel-limited taxi deliveries on grid maps.
package main

import (
	"fmt"
	"os"

	"taxi-relay/internal/cli"
)

// Build information. Populated at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date, builtBy)

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
