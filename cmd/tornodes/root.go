package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for tornodes.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tornodes",
		Short: "Cache and serve the Tor exit node and relay lists",
		Long: `tornodes fetches the Tor exit address list and the relay summary,
keeps them in a time-limited cache and serves them over HTTP as a plain
text IP list, JSON, Markdown statistics and an RSS feed.

Settings are read from .tornodes.yaml, then from the environment, then
from the command line flags.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .tornodes.yaml in current or home directory)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewFetchCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
