package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for lighthouse.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lighthouse",
		Short: "Gather page artifacts through a headless browser",
		Long: `lighthouse loads a URL in Chrome through a sequence of navigations and
runs collectors at each phase of the page lifecycle. Every collector result,
successful or failed, ends up in the run's artifacts.

Runs are stored locally so later runs of the same URL can be compared.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewGatherCmd())
	cmd.AddCommand(NewCompareCmd())
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
