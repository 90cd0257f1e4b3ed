// Package simulation feeds one access trace through a group of independent
// cache simulators.
package simulation

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/hooking"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
)

// ResultTableName is the table that holds one row per simulator.
const ResultTableName = "cache_results"

// ResultEntry is the row recorded for one simulator. An undefined hit rate is
// stored as NULL.
type ResultEntry struct {
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
	HitRate       float64
}

// attachment is a hook and the positions it is attached to.
type attachment struct {
	hook      hooking.Hook
	positions []*hooking.HookPos
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

type runner struct {
	simulator *cache.Simulator
	lock      sync.Locker
}

func (r runner) process(addresses []uint32) {
	r.lock.Lock()
	defer r.lock.Unlock()

	for _, address := range addresses {
		r.simulator.Process(address)
	}
}

// A Simulation drives every registered simulator with the same ordered
// stream of accesses.
type Simulation struct {
	id        string
	parallel  bool
	batchSize int

	dataRecorder datarecording.DataRecorder
	monitor      *monitoring.Monitor
	hooks        []attachment

	runners   []runner
	nameIndex map[string]int
	accesses  uint64
}

// ID returns the unique ID of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// GetDataRecorder returns the data recorder used in the simulation.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetMonitor returns the monitor used in the simulation.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// RegisterSimulator adds a simulator to the simulation. Names must be unique.
func (s *Simulation) RegisterSimulator(sim *cache.Simulator) {
	name := sim.Name()
	if _, exists := s.nameIndex[name]; exists {
		panic("simulator " + name + " already registered")
	}

	for _, a := range s.hooks {
		sim.AcceptHook(a.hook, a.positions...)
	}

	r := runner{simulator: sim, lock: noLock{}}
	if s.monitor != nil {
		r.lock = s.monitor.RegisterSimulator(sim)
	}

	s.runners = append(s.runners, r)
	s.nameIndex[name] = len(s.runners) - 1
}

// Simulators returns the registered simulators in registration order.
func (s *Simulation) Simulators() []*cache.Simulator {
	sims := make([]*cache.Simulator, len(s.runners))
	for i, r := range s.runners {
		sims[i] = r.simulator
	}

	return sims
}

// GetSimulatorByName returns the simulator with the given name, or nil.
func (s *Simulation) GetSimulatorByName(name string) *cache.Simulator {
	i, ok := s.nameIndex[name]
	if !ok {
		return nil
	}

	return s.runners[i].simulator
}

// Accesses returns how many trace records have been processed.
func (s *Simulation) Accesses() uint64 {
	return s.accesses
}

// Run processes the source until it is exhausted. Accesses processed before
// an error or a cancellation stay counted.
func (s *Simulation) Run(ctx context.Context, source trace.Source) error {
	p := s.startProgress(source)
	defer p.complete()

	if s.parallel {
		return s.runParallel(ctx, source, p)
	}

	return s.runSequential(ctx, source, p)
}

func (s *Simulation) runSequential(
	ctx context.Context,
	source trace.Source,
	p *progress,
) error {
	address := make([]uint32, 1)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		access, err := source.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		address[0] = access.Address
		for _, r := range s.runners {
			r.process(address)
		}

		s.accesses++
		p.update(1)
	}
}

func (s *Simulation) runParallel(
	ctx context.Context,
	source trace.Source,
	p *progress,
) error {
	batch := make([]uint32, 0, s.batchSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			done    bool
			readErr error
		)

		batch, done, readErr = readBatch(source, batch[:0], s.batchSize)

		if len(batch) > 0 {
			s.processBatch(batch)
			s.accesses += uint64(len(batch))
			p.update(uint64(len(batch)))
		}

		if readErr != nil {
			return readErr
		}

		if done {
			return nil
		}
	}
}

func (s *Simulation) processBatch(batch []uint32) {
	var g errgroup.Group

	for _, r := range s.runners {
		g.Go(func() error {
			r.process(batch)
			return nil
		})
	}

	_ = g.Wait()
}

func readBatch(
	source trace.Source,
	batch []uint32,
	size int,
) ([]uint32, bool, error) {
	for len(batch) < size {
		access, err := source.Next()
		if errors.Is(err, io.EOF) {
			return batch, true, nil
		}

		if err != nil {
			return batch, false, err
		}

		batch = append(batch, access.Address)
	}

	return batch, false, nil
}

// Summaries returns the summary of every simulator in registration order.
func (s *Simulation) Summaries() []cache.Summary {
	reports := make([]cache.Summary, len(s.runners))

	for i, r := range s.runners {
		r.lock.Lock()
		reports[i] = r.simulator.Summary()
		r.lock.Unlock()
	}

	return reports
}

// Terminate records the results and closes the data recorder.
func (s *Simulation) Terminate() error {
	if s.dataRecorder == nil {
		return nil
	}

	for _, r := range s.Summaries() {
		s.dataRecorder.InsertData(ResultTableName, ResultEntry{
			Simulation:    s.id,
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
			HitRate:       r.HitRate,
		})
	}

	return s.dataRecorder.Close()
}
