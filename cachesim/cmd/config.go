package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/cachesim/mem/cache"
)

// envFlags maps flags to the environment variables that provide their
// defaults.
var envFlags = map[string]string{
	"trace":         "CACHESIM_TRACE",
	"cache-size":    "CACHESIM_CACHE_SIZE",
	"block-size":    "CACHESIM_BLOCK_SIZE",
	"associativity": "CACHESIM_ASSOCIATIVITY",
	"tag-mode":      "CACHESIM_TAG_MODE",
	"recency":       "CACHESIM_RECENCY",
}

type config struct {
	tracePath     string
	cacheSize     int
	blockSize     int
	tagMode       string
	recency       string
	skipMalformed bool

	logAccesses    bool
	record         string
	recordAccesses bool

	monitor     bool
	monitorPort int
	openBrowser bool

	envFile string
}

func (c *config) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.tracePath, "trace", "swim.trace",
		"the trace file to simulate")
	flags.IntVar(&c.cacheSize, "cache-size", 512,
		"the cache capacity in bytes")
	flags.IntVar(&c.blockSize, "block-size", 8,
		"the block size in bytes")
	flags.StringVar(&c.tagMode, "tag-mode", cache.TagShifted.String(),
		"how tags are derived, shifted or coarse")
	flags.StringVar(&c.recency, "recency", cache.RecencyCounter.String(),
		"how set-associative caches track recency, counter or timestamp")
	flags.BoolVar(&c.skipMalformed, "skip-malformed", false,
		"skip malformed trace lines instead of failing")
	flags.BoolVar(&c.logAccesses, "log-accesses", false,
		"log every access to stderr")
	flags.StringVar(&c.record, "record", "",
		"record the results into the SQLite file or the clickhouse:// DSN")
	flags.BoolVar(&c.recordAccesses, "record-accesses", false,
		"record every access into the results target")
	flags.BoolVar(&c.monitor, "monitor", false,
		"serve the monitoring API while simulating")
	flags.IntVar(&c.monitorPort, "monitor-port", 0,
		"the port of the monitoring server, random if not set")
	flags.BoolVar(&c.openBrowser, "open-browser", false,
		"open the monitor in a web browser")
	flags.StringVar(&c.envFile, "env-file", "",
		"load CACHESIM_* defaults from the file")
}

// loadEnv loads the env file, if any, and fills in every flag that is not set
// on the command line from its environment variable.
func (c *config) loadEnv(cmd *cobra.Command) error {
	if c.envFile != "" {
		err := godotenv.Load(c.envFile)
		if err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	var err error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed {
			return
		}

		envName, ok := envFlags[f.Name]
		if !ok {
			return
		}

		value, ok := os.LookupEnv(envName)
		if !ok {
			return
		}

		if setErr := f.Value.Set(value); setErr != nil {
			err = fmt.Errorf("%s=%q: %w", envName, value, setErr)
		}
	})

	return err
}

func (c *config) builder() (cache.Builder, error) {
	tagMode, err := cache.ParseTagMode(c.tagMode)
	if err != nil {
		return cache.Builder{}, err
	}

	recency, err := cache.ParseRecencyMode(c.recency)
	if err != nil {
		return cache.Builder{}, err
	}

	return cache.MakeBuilder().
		WithCacheByteSize(c.cacheSize).
		WithBlockSize(c.blockSize).
		WithTagMode(tagMode).
		WithRecencyMode(recency), nil
}
