package cmd

import (
	"database/sql"
	"fmt"
	"math"
	"slices"

	"github.com/spf13/cobra"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/simulation"
)

// recordedResult mirrors simulation.ResultEntry, with a nullable hit rate.
type recordedResult struct {
	Simulation    string
	Name          string
	Policy        string
	CacheByteSize int
	BlockSize     int
	NumSets       int
	Associativity int
	Accesses      uint64
	Hits          uint64
	Misses        uint64
	Evictions     uint64
	HitRate       sql.NullFloat64
}

func (r *recordedResult) report() cache.Summary {
	hitRate := math.NaN()
	if r.HitRate.Valid {
		hitRate = r.HitRate.Float64
	}

	return cache.Summary{
		Name:          r.Name,
		Policy:        r.Policy,
		CacheByteSize: r.CacheByteSize,
		BlockSize:     r.BlockSize,
		NumSets:       r.NumSets,
		Associativity: r.Associativity,
		Accesses:      r.Accesses,
		Hits:          r.Hits,
		Misses:        r.Misses,
		Evictions:     r.Evictions,
		HitRate:       hitRate,
	}
}

func newShowCmd() *cobra.Command {
	var (
		where string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "show <recording.sqlite3>",
		Short: "Print the results stored in a recording.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := datarecording.NewReader(args[0])
			if err != nil {
				return err
			}
			defer reader.Close()

			tables, err := reader.ListTables()
			if err != nil {
				return err
			}

			if !slices.Contains(tables, simulation.ResultTableName) {
				return fmt.Errorf("%s has no %s table",
					args[0], simulation.ResultTableName)
			}

			reader.MapTable(simulation.ResultTableName, recordedResult{})

			rows, total, err := reader.Query(cmd.Context(),
				simulation.ResultTableName,
				datarecording.QueryParams{
					Where:   where,
					Limit:   limit,
					OrderBy: "rowid",
				})
			if err != nil {
				return fmt.Errorf("query results: %w", err)
			}

			reports := make([]cache.Summary, 0, len(rows))
			for _, row := range rows {
				reports = append(reports, row.(*recordedResult).report())
			}

			cache.WriteSummaries(cmd.OutOrStdout(), reports)

			if total > len(reports) {
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d results shown\n",
					len(reports), total)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&where, "where", "",
		"an SQL condition on the result columns, e.g. \"Associativity > 1\"")
	cmd.Flags().IntVar(&limit, "limit", 0,
		"the maximum number of results to print, 0 for all")

	return cmd
}
