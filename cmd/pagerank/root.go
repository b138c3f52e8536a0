package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pagerank.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagerank",
		Short: "Estimate PageRank for a directory of HTML pages",
		Long: `pagerank estimates the relative importance of the pages in a local corpus of
HTML files. Links are read from <a href> elements; only links between files
of the corpus count.

Every run computes two independent estimates: a random-surfer sampler and a
fixed point iteration. Runs are kept in a local history database so that
rank changes can be compared over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write log records as JSON lines")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the run history database (default: XDG data directory)")

	cmd.AddCommand(NewRankCmd())
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
