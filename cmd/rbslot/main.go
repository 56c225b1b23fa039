// Package main provides the entry point for the rbslot CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbslot/cmd/rbslot/commands"
	"github.com/Sumatoshi-tech/rbslot/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rbslot",
		Short: "rbslot - red-black tree over a slot allocator",
		Long: `rbslot benchmarks and soak-tests a red-black tree whose nodes live in
fixed-size blocks addressed by 32-bit slot indices.

Commands:
  bench     Insert, find and erase keys across the tree and baseline containers
  soak      Apply random operations and check invariants against a reference map`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	commands.AddGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.NewBenchCommand())
	rootCmd.AddCommand(commands.NewSoakCommand())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "rbslot", version.String())
		},
	}
}
