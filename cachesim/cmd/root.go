// Package cmd provides the command-line interface for cachesim.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// NewRootCmd creates the base command with all the subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use: "cachesim",
		Short: "cachesim replays memory access traces through simulated " +
			"caches.",
		Long: `cachesim replays memory access traces through simulated ` +
			`caches and reports their hit rates. It supports direct-mapped, ` +
			`set-associative and fully-associative placement.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newCompareCmd(),
		newShowCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command. An interrupt stops the simulation early and
// the partial results are still reported.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		stop()
		atexit.Exit(1)
	}
}
