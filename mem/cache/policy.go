package cache

import (
	"fmt"
	"strings"
)

// RecencyMode selects how the recency value of a line evolves.
type RecencyMode int

const (
	// RecencyCounter treats recency as a use counter. Installs start at 1 and
	// a hit raises the line above every other line of its set. It
	// approximates LRU without timestamps.
	RecencyCounter RecencyMode = iota

	// RecencyTimestamp stores the access clock of the last touch, which makes
	// the minimum-recency victim the least recently used line.
	RecencyTimestamp
)

func (m RecencyMode) String() string {
	switch m {
	case RecencyCounter:
		return "counter"
	case RecencyTimestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("RecencyMode(%d)", int(m))
	}
}

// ParseRecencyMode converts "counter" or "timestamp" to a RecencyMode.
func ParseRecencyMode(s string) (RecencyMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "counter", "":
		return RecencyCounter, nil
	case "timestamp", "lru":
		return RecencyTimestamp, nil
	default:
		return RecencyCounter, &ConfigError{
			Field:  "recency mode",
			Value:  s,
			Reason: "must be counter or timestamp",
		}
	}
}

// Outcome is what a policy reports after looking up one block.
type Outcome struct {
	Hit        bool
	Way        int
	Evicted    bool
	EvictedTag uint64
}

// A Policy owns the lines of a cache. It decides whether a block is present
// and installs the block on a miss.
type Policy interface {
	// Name describes the placement policy, e.g. "2-way set-associative".
	Name() string

	// Access looks up the block with the tag in the set with the index. The
	// now argument is a logical clock that grows by one per access.
	Access(tag uint64, index int, now uint64) Outcome

	// Set returns a copy of the lines of the set with the index.
	Set(index int) Set

	// Reset invalidates every line.
	Reset()
}

func install(line *Line, tag, recency uint64, way int) Outcome {
	o := Outcome{Way: way}

	if line.Installed() {
		o.Evicted = true
		o.EvictedTag = line.Tag()
	}

	line.Install(tag, recency)

	return o
}

// directMapped holds one line per index, so a miss always replaces the line
// at the index of the address.
type directMapped struct {
	lines Set
}

func newDirectMapped(numSets int) *directMapped {
	return &directMapped{lines: make(Set, numSets)}
}

func (p *directMapped) Name() string {
	return "direct-mapped"
}

func (p *directMapped) Access(tag uint64, index int, _ uint64) Outcome {
	line := &p.lines[index]

	if line.Matches(tag) {
		line.Touch(line.Recency() + 1)
		return Outcome{Hit: true}
	}

	return install(line, tag, 1, 0)
}

func (p *directMapped) Set(index int) Set {
	return p.lines[index : index+1].clone()
}

func (p *directMapped) Reset() {
	p.lines.reset()
}

// setAssociative holds numWays lines per index and picks the victim among
// them.
type setAssociative struct {
	numWays      int
	sets         []Set
	recency      RecencyMode
	victimFinder VictimFinder
}

func newSetAssociative(
	numSets, numWays int,
	recency RecencyMode,
	victimFinder VictimFinder,
) *setAssociative {
	return &setAssociative{
		numWays:      numWays,
		sets:         newSets(numSets, numWays),
		recency:      recency,
		victimFinder: victimFinder,
	}
}

func (p *setAssociative) Name() string {
	return fmt.Sprintf("%d-way set-associative", p.numWays)
}

func (p *setAssociative) Access(tag uint64, index int, now uint64) Outcome {
	set := p.sets[index]

	way, found := set.lookup(tag)
	if found {
		p.visit(set, way, now)
		return Outcome{Hit: true, Way: way}
	}

	way = p.victimFinder.FindVictim(set)

	recency := uint64(1)
	if p.recency == RecencyTimestamp {
		recency = now
	}

	return install(&set[way], tag, recency, way)
}

func (p *setAssociative) visit(set Set, way int, now uint64) {
	if p.recency == RecencyTimestamp {
		set[way].Touch(now)
		return
	}

	pullUp(set, way)
}

// pullUp increments the counter of the hit line and then raises it past the
// largest counter among its siblings, so the hit line ends up with the
// highest counter in the set.
func pullUp(set Set, way int) {
	recency := set[way].Recency() + 1

	for i := range set {
		if i == way {
			continue
		}

		if set[i].Recency() >= recency {
			recency = set[i].Recency() + 1
		}
	}

	set[way].Touch(recency)
}

func (p *setAssociative) Set(index int) Set {
	return p.sets[index].clone()
}

func (p *setAssociative) Reset() {
	for _, set := range p.sets {
		set.reset()
	}
}

// fullyAssociative holds all the lines in one set. Recency is always the
// access clock of the last touch, so the victim is the least recently used
// line of the whole cache.
type fullyAssociative struct {
	lines        Set
	victimFinder VictimFinder
}

func newFullyAssociative(
	numLines int,
	victimFinder VictimFinder,
) *fullyAssociative {
	return &fullyAssociative{
		lines:        make(Set, numLines),
		victimFinder: victimFinder,
	}
}

func (p *fullyAssociative) Name() string {
	return "fully-associative"
}

func (p *fullyAssociative) Access(tag uint64, _ int, now uint64) Outcome {
	way, found := p.lines.lookup(tag)
	if found {
		p.lines[way].Touch(now)
		return Outcome{Hit: true, Way: way}
	}

	way = p.victimFinder.FindVictim(p.lines)

	return install(&p.lines[way], tag, now, way)
}

func (p *fullyAssociative) Set(_ int) Set {
	return p.lines.clone()
}

func (p *fullyAssociative) Reset() {
	p.lines.reset()
}
