package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
	"github.com/sarchlab/cachesim/simulation"
)

// simulatorName names a simulator after its placement policy.
func simulatorName(g cache.Geometry) string {
	switch {
	case g.IsDirectMapped():
		return "Direct-mapped"
	case g.IsFullyAssociative():
		return "Fully-associative"
	default:
		return fmt.Sprintf("%d-way set-associative", g.Associativity)
	}
}

// buildSimulators builds one simulator per associativity. All configuration
// errors are reported before any trace is opened.
func (c *config) buildSimulators(
	associativities []int,
) ([]*cache.Simulator, error) {
	b, err := c.builder()
	if err != nil {
		return nil, err
	}

	var sims []*cache.Simulator

	names := make(map[string]bool)

	for _, assoc := range associativities {
		sb := b.WithAssociativity(assoc)

		g, err := sb.Geometry()
		if err != nil {
			return nil, err
		}

		name := simulatorName(g)
		if names[name] {
			return nil, fmt.Errorf("associativity %d is listed twice", assoc)
		}

		names[name] = true

		sim, err := sb.Build(name)
		if err != nil {
			return nil, err
		}

		sims = append(sims, sim)
	}

	return sims, nil
}

// session runs a group of simulators over the configured trace.
type session struct {
	cfg      *config
	parallel bool
	out      io.Writer
	errOut   io.Writer
}

func (s *session) buildSimulation() (sim *simulation.Simulation, err error) {
	b := simulation.MakeBuilder()

	if s.parallel {
		b = b.WithParallel()
	}

	if s.cfg.logAccesses {
		b = b.WithAccessLogger(log.New(s.errOut, "", 0))
	}

	if s.cfg.record != "" || s.cfg.recordAccesses {
		recorder, openErr := datarecording.Open(s.cfg.record)
		if openErr != nil {
			return nil, fmt.Errorf("open recording: %w", openErr)
		}

		defer func() {
			if err != nil {
				recorder.Close()
			}
		}()

		b = b.WithDataRecorder(recorder)

		if s.cfg.recordAccesses {
			b = b.WithRecordAccesses()
		}
	}

	if s.cfg.monitor {
		monitor := monitoring.NewMonitor()
		if s.cfg.monitorPort > 0 {
			monitor.WithPortNumber(s.cfg.monitorPort)
		}

		_, err = monitor.StartServer()
		if err != nil {
			return nil, err
		}

		if s.cfg.openBrowser {
			if browserErr := monitor.OpenInBrowser(); browserErr != nil {
				fmt.Fprintf(s.errOut, "Cannot open browser: %v\n", browserErr)
			}
		}

		b = b.WithMonitor(monitor)
	}

	return b.Build(), nil
}

func (s *session) run(
	ctx context.Context,
	sims []*cache.Simulator,
) ([]cache.Summary, error) {
	f, err := trace.Open(s.cfg.tracePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if s.cfg.skipMalformed {
		f.WithSkipMalformed()
	}

	sim, err := s.buildSimulation()
	if err != nil {
		return nil, err
	}

	if monitor := sim.GetMonitor(); monitor != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(), time.Second)
			defer cancel()

			_ = monitor.Shutdown(shutdownCtx)
		}()
	}

	for _, c := range sims {
		sim.RegisterSimulator(c)
	}

	runErr := sim.Run(ctx, f)
	if errors.Is(runErr, context.Canceled) {
		fmt.Fprintf(s.errOut,
			"Interrupted after %d accesses, reporting partial results.\n",
			sim.Accesses())
		runErr = nil
	}

	if f.Skipped() > 0 {
		fmt.Fprintf(s.errOut, "Skipped %d malformed trace lines.\n",
			f.Skipped())
	}

	reports := sim.Summaries()

	err = sim.Terminate()
	if err != nil {
		return reports, fmt.Errorf("record results: %w", err)
	}

	return reports, runErr
}

func writeSummary(w io.Writer, reports []cache.Summary) {
	for _, r := range reports {
		fmt.Fprintf(w, "%s cache hit rate: %s\n", r.Name, r.FormatHitRate())
	}

	if len(reports) > 0 {
		fmt.Fprintf(w, "Access count: %d\n", reports[0].Accesses)
	}
}

func parseAssociativities(values []string) ([]int, error) {
	var list []int

	for _, v := range values {
		for _, field := range strings.Split(v, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}

			assoc, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("bad associativity %q", field)
			}

			list = append(list, assoc)
		}
	}

	if len(list) == 0 {
		return nil, errors.New("no associativity given")
	}

	return list, nil
}
