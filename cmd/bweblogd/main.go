// bweblogd - HTTP request instrumentation daemon.
package main

import (
	"github.com/bweblog/bweblog/pkg/cli"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cli.Version = Version
	cli.Commit = Commit
	cli.BuildDate = BuildDate
	cli.Execute()
}
