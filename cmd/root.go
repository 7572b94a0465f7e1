// Package cmd defines the CLI commands for the eventtide executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventtide",
		Short: "Multi-source event scraper and normalizer",
		Long: `eventtide collects event listings from configured sources, extracts and
normalizes them into a canonical schema, and keeps a deduplicated event
store fresh. Run it as an HTTP service with "serve" or trigger a single
scrape pass with "run".`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default eventtide.yaml in the working directory)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
