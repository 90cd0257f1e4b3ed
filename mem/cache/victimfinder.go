package cache

// A VictimFinder decides which line of a set is replaced on a miss.
type VictimFinder interface {
	FindVictim(set Set) int
}

// MinRecencyVictimFinder evicts the line with the smallest recency value.
// With timestamp recency this is the least recently used line.
type MinRecencyVictimFinder struct {
}

// NewMinRecencyVictimFinder returns a newly constructed victim finder.
func NewMinRecencyVictimFinder() *MinRecencyVictimFinder {
	return new(MinRecencyVictimFinder)
}

// FindVictim returns the way to replace. Lines that were never installed are
// used first, in slot order. Otherwise the lowest recency wins and ties go to
// the lowest slot.
func (f *MinRecencyVictimFinder) FindVictim(set Set) int {
	for way := range set {
		if !set[way].Installed() {
			return way
		}
	}

	victim := 0

	for way := 1; way < len(set); way++ {
		if set[way].Recency() < set[victim].Recency() {
			victim = way
		}
	}

	return victim
}
