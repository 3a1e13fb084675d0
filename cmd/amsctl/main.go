package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Версия задаётся при сборке через -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var opts rootOptions

	rootCmd := &cobra.Command{
		Use:   "amsctl",
		Short: "AMS session client",
		Long: `amsctl keeps an authenticated session with the AMS backend.

The session survives restarts (file, memory or redis storage), renews the
access token shortly before it expires and transparently retries requests
that fail with 401 once after a refresh.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(
		loginCmd(&opts),
		logoutCmd(&opts),
		whoamiCmd(&opts),
		refreshCmd(&opts),
		getCmd(&opts),
		pingCmd(&opts),
		consoleCmd(&opts),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
