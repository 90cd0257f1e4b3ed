package simulation

import (
	"github.com/sarchlab/cachesim/mem/trace"
	"github.com/sarchlab/cachesim/monitoring"
)

// sizedSource is a source that knows how far it is through its input.
type sizedSource interface {
	Size() int64
	BytesRead() int64
}

// progress reports trace progress to the monitor. Sized sources are tracked
// in bytes, others in accesses.
type progress struct {
	monitor  *monitoring.Monitor
	bar      *monitoring.ProgressBar
	sized    sizedSource
	reported uint64
}

func (s *Simulation) startProgress(source trace.Source) *progress {
	p := &progress{monitor: s.monitor}
	if s.monitor == nil {
		return p
	}

	var total uint64
	if sized, ok := source.(sizedSource); ok {
		p.sized = sized
		total = uint64(sized.Size())
	}

	p.bar = s.monitor.CreateProgressBar("Trace "+s.id, total)

	return p
}

func (p *progress) update(accesses uint64) {
	if p.bar == nil {
		return
	}

	if p.sized == nil {
		p.bar.IncrementFinished(accesses)
		return
	}

	read := uint64(p.sized.BytesRead())
	if read > p.reported {
		p.bar.IncrementFinished(read - p.reported)
		p.reported = read
	}
}

func (p *progress) complete() {
	if p.bar == nil {
		return
	}

	p.monitor.CompleteProgressBar(p.bar)
}
