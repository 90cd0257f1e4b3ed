package simulation

import (
	"log"

	"github.com/rs/xid"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/hooking"
	"github.com/sarchlab/cachesim/mem/cache"
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
)

// Builder can be used to build a simulation.
type Builder struct {
	parallel       bool
	batchSize      int
	dataRecorder   datarecording.DataRecorder
	recordAccesses bool
	accessLogger   *log.Logger
	monitor        *monitoring.Monitor
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		parallel:  false,
		batchSize: 4096,
	}
}

// WithParallel makes every simulator process each batch of accesses on its
// own goroutine.
func (b Builder) WithParallel() Builder {
	b.parallel = true
	return b
}

// WithBatchSize sets how many accesses are read before a parallel batch is
// dispatched.
func (b Builder) WithBatchSize(batchSize int) Builder {
	b.batchSize = batchSize
	return b
}

// WithDataRecorder sets the recorder that receives the results.
func (b Builder) WithDataRecorder(
	dataRecorder datarecording.DataRecorder,
) Builder {
	b.dataRecorder = dataRecorder
	return b
}

// WithRecordAccesses records every access into the data recorder.
func (b Builder) WithRecordAccesses() Builder {
	b.recordAccesses = true
	return b
}

// WithAccessLogger logs every access and eviction with the logger.
func (b Builder) WithAccessLogger(logger *log.Logger) Builder {
	b.accessLogger = logger
	return b
}

// WithMonitor exposes the simulators through the monitor.
func (b Builder) WithMonitor(monitor *monitoring.Monitor) Builder {
	b.monitor = monitor
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.batchSize < 1 {
		panic("batch size must be at least 1")
	}

	if b.recordAccesses && b.dataRecorder == nil {
		panic("recording accesses requires a data recorder")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		id:           xid.New().String(),
		parallel:     b.parallel,
		batchSize:    b.batchSize,
		dataRecorder: b.dataRecorder,
		monitor:      b.monitor,
		nameIndex:    make(map[string]int),
	}

	if b.accessLogger != nil {
		s.hooks = append(s.hooks, attachment{
			hook: trace.NewTracer(b.accessLogger),
			positions: []*hooking.HookPos{
				cache.HookPosAccess, cache.HookPosEvict,
			},
		})
	}

	if b.dataRecorder != nil {
		s.dataRecorder.CreateTable(ResultTableName, ResultEntry{})

		if b.recordAccesses {
			s.hooks = append(s.hooks, attachment{
				hook:      trace.NewDBTracer(b.dataRecorder),
				positions: []*hooking.HookPos{cache.HookPosAccess},
			})
		}
	}

	return s
}
