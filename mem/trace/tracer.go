package trace

import (
	"log"
	"sync"

	"github.com/sarchlab/cachesim/datarecording"
	"github.com/sarchlab/cachesim/hooking"
	"github.com/sarchlab/cachesim/mem/cache"
)

// AccessTableName is the table that the DB tracer writes to.
const AccessTableName = "cache_accesses"

// accessEntry represents one traced access in the database.
type accessEntry struct {
	Cache      string
	Seq        uint64
	Address    uint32
	SetIndex   int
	Tag        uint64
	Way        int
	Hit        bool
	Evicted    bool
	EvictedTag uint64
}

func hitOrMiss(hit bool) string {
	if hit {
		return "hit"
	}

	return "miss"
}

// A tracer is a hook that logs the accesses and evictions of a cache.
type tracer struct {
	logger *log.Logger
}

// NewTracer creates a hook that writes one log line per access and one per
// eviction. Attach it to cache.HookPosAccess and cache.HookPosEvict.
func NewTracer(logger *log.Logger) hooking.Hook {
	return &tracer{logger: logger}
}

// Func logs the access or the eviction.
func (t *tracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case cache.HookPosAccess:
		result := ctx.Item.(cache.AccessResult)
		t.logger.Printf("%s, %s, 0x%08x, %d, 0x%x\n",
			ctx.Site.Name(),
			hitOrMiss(result.Hit),
			result.Address,
			result.Index,
			result.Tag,
		)
	case cache.HookPosEvict:
		eviction := ctx.Item.(cache.Eviction)
		t.logger.Printf("%s, evict, 0x%08x, %d, 0x%x\n",
			ctx.Site.Name(),
			eviction.Address,
			eviction.Index,
			eviction.Tag,
		)
	}
}

// A dbTracer is a hook that records every access of a cache into a database
// using the data recorder. One dbTracer can serve several caches.
type dbTracer struct {
	lock         sync.Mutex
	dataRecorder datarecording.DataRecorder
	seq          map[string]uint64
}

// NewDBTracer creates a database-based access tracer. Attach it to
// cache.HookPosAccess.
func NewDBTracer(dataRecorder datarecording.DataRecorder) hooking.Hook {
	t := &dbTracer{
		dataRecorder: dataRecorder,
		seq:          make(map[string]uint64),
	}

	t.dataRecorder.CreateTable(AccessTableName, accessEntry{})

	return t
}

// Func records the access.
func (t *dbTracer) Func(ctx hooking.HookCtx) {
	if ctx.Pos != cache.HookPosAccess {
		return
	}

	result := ctx.Item.(cache.AccessResult)
	name := ctx.Site.Name()

	t.lock.Lock()
	t.seq[name]++
	seq := t.seq[name]
	t.lock.Unlock()

	t.dataRecorder.InsertData(AccessTableName, accessEntry{
		Cache:      name,
		Seq:        seq,
		Address:    result.Address,
		SetIndex:   result.Index,
		Tag:        result.Tag,
		Way:        result.Way,
		Hit:        result.Hit,
		Evicted:    result.Evicted,
		EvictedTag: result.EvictedTag,
	})
}
