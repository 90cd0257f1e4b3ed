package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/mem/cache"
)

func newRunCmd() *cobra.Command {
	cfg := &config{}

	var associativity int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate one cache over a trace.",
		Long: "`run` replays the trace through one cache. Associativity 1 " +
			"gives a direct-mapped cache and an associativity equal to the " +
			"number of blocks gives a fully-associative cache.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.loadEnv(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			sims, err := cfg.buildSimulators([]int{associativity})
			if err != nil {
				return err
			}

			s := &session{
				cfg:    cfg,
				out:    cmd.OutOrStdout(),
				errOut: cmd.ErrOrStderr(),
			}

			reports, err := s.run(cmd.Context(), sims)
			if reports != nil {
				cache.WriteSummaries(s.out, reports)
			}

			return err
		},
	}

	cfg.addFlags(cmd.Flags())
	cmd.Flags().IntVar(&associativity, "associativity", 1,
		"the number of lines per set")

	return cmd
}
