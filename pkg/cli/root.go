// Package cli implements the bweblogd command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build info injected via ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "bweblogd",
	Short: "bweblogd instruments HTTP traffic and fans it out to reporters",
	Long: `bweblogd runs an HTTP server whose routes are wrapped by the request
interceptor. Every request produces begin and finish events delivered to
the enabled reporters: a console reporter, a rotating-file reporter and a
domain-event reporter. Reporters are toggled and configured at runtime
through the /bweb-log management endpoints on the same listener.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
