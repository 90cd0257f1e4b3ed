package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/mem/cache"
)

func newCompareCmd() *cobra.Command {
	cfg := &config{}

	var (
		associativities []string
		parallel        bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Simulate several caches over the same trace.",
		Long: "`compare` replays the trace once and feeds every access to " +
			"one cache per listed associativity, e.g. " +
			"`--associativity 1,2,64`.",
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return cfg.loadEnv(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := parseAssociativities(associativities)
			if err != nil {
				return err
			}

			sims, err := cfg.buildSimulators(list)
			if err != nil {
				return err
			}

			s := &session{
				cfg:      cfg,
				parallel: parallel,
				out:      cmd.OutOrStdout(),
				errOut:   cmd.ErrOrStderr(),
			}

			reports, err := s.run(cmd.Context(), sims)
			if reports != nil {
				cache.WriteSummaries(s.out, reports)
				writeSummary(s.out, reports)
			}

			return err
		},
	}

	cfg.addFlags(cmd.Flags())
	cmd.Flags().StringSliceVar(&associativities, "associativity",
		[]string{"1", "2"}, "the associativities to compare")
	cmd.Flags().BoolVar(&parallel, "parallel", false,
		"simulate each cache on its own goroutine")

	return cmd
}
