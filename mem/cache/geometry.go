package cache

import "fmt"

// Geometry is the shape of a cache derived from its size, block size, and
// associativity.
type Geometry struct {
	CacheByteSize int
	BlockSize     int
	Associativity int
	NumBlocks     int
	NumSets       int
	OffsetBits    int
	IndexBits     int
	TagBits       int
}

// IsDirectMapped tells if every set holds a single line.
func (g Geometry) IsDirectMapped() bool {
	return g.Associativity == 1
}

// IsFullyAssociative tells if all the lines belong to one set.
func (g Geometry) IsFullyAssociative() bool {
	return g.NumSets == 1 && g.Associativity > 1
}

func (g Geometry) String() string {
	return fmt.Sprintf(
		"%dB cache, %dB blocks, %d sets x %d ways "+
			"(offset %d bits, index %d bits, tag %d bits)",
		g.CacheByteSize, g.BlockSize, g.NumSets, g.Associativity,
		g.OffsetBits, g.IndexBits, g.TagBits)
}
