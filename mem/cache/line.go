package cache

// A Line is one storage slot of the cache. The zero value is a line that has
// never been installed and matches no tag, including tag 0.
type Line struct {
	tag       uint64
	recency   uint64
	installed bool
}

// Tag returns the tag of the block held by the line. It is meaningless if the
// line is not installed.
func (l *Line) Tag() uint64 {
	return l.tag
}

// Recency returns the use counter or the last-touch timestamp of the line,
// depending on the replacement policy.
func (l *Line) Recency() uint64 {
	return l.recency
}

// Installed tells if a block has ever been placed in the line.
func (l *Line) Installed() bool {
	return l.installed
}

// Matches returns true if the line holds the block with the given tag.
func (l *Line) Matches(tag uint64) bool {
	return l.installed && l.tag == tag
}

// Install places a block in the line.
func (l *Line) Install(tag, recency uint64) {
	l.tag = tag
	l.recency = recency
	l.installed = true
}

// Touch updates the recency of an installed line.
func (l *Line) Touch(recency uint64) {
	if !l.installed {
		panic("touching a line that is not installed")
	}

	l.recency = recency
}

// A Set is the group of lines that share one index. Its length is the
// associativity of the cache and never changes.
type Set []Line

func newSets(numSets, numWays int) []Set {
	lines := make([]Line, numSets*numWays)
	sets := make([]Set, numSets)

	for i := range sets {
		sets[i] = Set(lines[i*numWays : (i+1)*numWays : (i+1)*numWays])
	}

	return sets
}

func (s Set) lookup(tag uint64) (int, bool) {
	for way := range s {
		if s[way].Matches(tag) {
			return way, true
		}
	}

	return 0, false
}

func (s Set) reset() {
	for i := range s {
		s[i] = Line{}
	}
}

func (s Set) clone() Set {
	c := make(Set, len(s))
	copy(c, s)

	return c
}
