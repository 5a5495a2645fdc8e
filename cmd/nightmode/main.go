package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "nightmode",
		Short: "Night Mode - budget-governed overnight task runner",
		Long: `Night Mode runs small, low-risk engineering tasks overnight on a
fixed subscription budget. It imports discovered tasks into a queue,
plans a batch that fits the remaining credit window, executes the tasks
one at a time with Claude Code, parks the changes on a per-night git
branch, and reports the outcome in the morning.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
