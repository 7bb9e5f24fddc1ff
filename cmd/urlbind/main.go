package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "urlbind",
		Short: "URL query parameter state synchronization",
		Long: `urlbind keeps UI state bidirectionally consistent with URL query
parameters across browser history navigation.

The CLI runs the WebSocket session server from an urlbind.json project
file and exposes the pure parameter resolver for scripting:

  urlbind serve              run the session server
  urlbind resolve            resolve a parameter against a URL
  urlbind version            print build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		resolveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}
