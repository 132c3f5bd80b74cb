// Command evoinfra is the operational CLI for the Evolve infrastructure
// facades: bucket and artifact management, MongoDB collection and schema
// administration, and the structured event stream.
package main

import (
	"os"

	"github.com/evolvehq/evoinfra/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func init() {
	cli.Version = version
	cli.GitCommit = commit
	cli.BuildDate = buildDate
}

func main() {
	// Execute prints the failure itself; the exit code is all that is
	// left to signal here.
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
