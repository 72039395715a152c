// Package cmd defines and implements the CLI commands for the bookfetch
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookfetch",
		Short: "A discovery and retrieval proxy for electronic books.",
		Long: `bookfetch fronts one or more third-party HTML book sources with a
rate-limited HTTP API. It scrapes search results into a uniform record
shape, resolves book pages into direct file links, and streams downloads
back to the caller under size and time bounds.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is environment-only)")
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
