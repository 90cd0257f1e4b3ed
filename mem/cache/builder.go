package cache

// Builder can build cache simulators.
type Builder struct {
	cacheByteSize int
	blockSize     int
	associativity int
	tagMode       TagMode
	recencyMode   RecencyMode
	victimFinder  VictimFinder
}

// MakeBuilder creates a new builder. The defaults describe a 512-byte
// direct-mapped cache with 8-byte blocks.
func MakeBuilder() Builder {
	return Builder{
		cacheByteSize: 512,
		blockSize:     8,
		associativity: 1,
		tagMode:       TagShifted,
		recencyMode:   RecencyCounter,
	}
}

// WithCacheByteSize sets the total capacity of the cache in bytes.
func (b Builder) WithCacheByteSize(cacheByteSize int) Builder {
	b.cacheByteSize = cacheByteSize
	return b
}

// WithBlockSize sets the size of a cache line in bytes.
func (b Builder) WithBlockSize(blockSize int) Builder {
	b.blockSize = blockSize
	return b
}

// WithAssociativity sets the number of lines per set. 1 builds a
// direct-mapped cache and the total number of blocks builds a
// fully-associative cache.
func (b Builder) WithAssociativity(associativity int) Builder {
	b.associativity = associativity
	return b
}

// WithTagMode sets how tags are derived from addresses.
func (b Builder) WithTagMode(tagMode TagMode) Builder {
	b.tagMode = tagMode
	return b
}

// WithRecencyMode sets how set-associative caches track recency.
// Fully-associative caches always use timestamps.
func (b Builder) WithRecencyMode(recencyMode RecencyMode) Builder {
	b.recencyMode = recencyMode
	return b
}

// WithVictimFinder replaces the default minimum-recency victim finder.
func (b Builder) WithVictimFinder(victimFinder VictimFinder) Builder {
	b.victimFinder = victimFinder
	return b
}

// Geometry validates the parameters and derives the shape of the cache.
func (b Builder) Geometry() (Geometry, error) {
	if b.cacheByteSize <= 0 {
		return Geometry{}, &ConfigError{
			Field:  "cache size",
			Value:  b.cacheByteSize,
			Reason: "must be positive",
		}
	}

	if !isPowerOfTwo(b.blockSize) {
		return Geometry{}, &ConfigError{
			Field:  "block size",
			Value:  b.blockSize,
			Reason: "must be a power of two",
		}
	}

	if b.associativity < 1 {
		return Geometry{}, &ConfigError{
			Field:  "associativity",
			Value:  b.associativity,
			Reason: "must be at least 1",
		}
	}

	if b.cacheByteSize%b.blockSize != 0 {
		return Geometry{}, &ConfigError{
			Field:  "cache size",
			Value:  b.cacheByteSize,
			Reason: "must be a multiple of the block size",
		}
	}

	numBlocks := b.cacheByteSize / b.blockSize
	if numBlocks%b.associativity != 0 {
		return Geometry{}, &ConfigError{
			Field:  "associativity",
			Value:  b.associativity,
			Reason: "must divide the number of blocks",
		}
	}

	numSets := numBlocks / b.associativity

	decoder, err := NewDecoder(b.blockSize, numSets, b.tagMode)
	if err != nil {
		return Geometry{}, err
	}

	g := Geometry{
		CacheByteSize: b.cacheByteSize,
		BlockSize:     b.blockSize,
		Associativity: b.associativity,
		NumBlocks:     numBlocks,
		NumSets:       numSets,
		OffsetBits:    decoder.OffsetBits(),
		IndexBits:     decoder.IndexBits(),
		TagBits:       decoder.TagBits(),
	}

	return g, nil
}

// Build builds a simulator. It returns a *ConfigError if the geometry cannot
// be simulated.
func (b Builder) Build(name string) (*Simulator, error) {
	g, err := b.Geometry()
	if err != nil {
		return nil, err
	}

	decoder, err := NewDecoder(g.BlockSize, g.NumSets, b.tagMode)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		name:     name,
		geometry: g,
		decoder:  decoder,
		policy:   b.createPolicy(g),
	}

	return s, nil
}

// MustBuild is like Build but panics on an invalid configuration.
func (b Builder) MustBuild(name string) *Simulator {
	s, err := b.Build(name)
	if err != nil {
		panic(err)
	}

	return s
}

func (b Builder) createPolicy(g Geometry) Policy {
	victimFinder := b.victimFinder
	if victimFinder == nil {
		victimFinder = NewMinRecencyVictimFinder()
	}

	switch {
	case g.Associativity == 1:
		return newDirectMapped(g.NumSets)
	case g.NumSets == 1:
		return newFullyAssociative(g.NumBlocks, victimFinder)
	default:
		return newSetAssociative(
			g.NumSets, g.Associativity, b.recencyMode, victimFinder)
	}
}
