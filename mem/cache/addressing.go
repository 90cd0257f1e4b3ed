package cache

import (
	"fmt"
	"math/bits"
	"strings"
)

// addressBits is the width of the addresses the simulator decodes.
const addressBits = 32

// TagMode selects how the tag of an address is derived.
type TagMode int

const (
	// TagShifted keeps only the address bits above the offset and index
	// fields, so every block mapping to one index has a distinct tag.
	TagShifted TagMode = iota

	// TagCoarse uses the full block number (address / block size) as the
	// tag. Coarse tags only compare correctly against other coarse tags.
	TagCoarse
)

func (m TagMode) String() string {
	switch m {
	case TagShifted:
		return "shifted"
	case TagCoarse:
		return "coarse"
	default:
		return fmt.Sprintf("TagMode(%d)", int(m))
	}
}

// ParseTagMode converts "shifted" or "coarse" to a TagMode.
func ParseTagMode(s string) (TagMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "shifted", "":
		return TagShifted, nil
	case "coarse":
		return TagCoarse, nil
	default:
		return TagShifted, &ConfigError{
			Field:  "tag mode",
			Value:  s,
			Reason: "must be shifted or coarse",
		}
	}
}

// A Decoder splits an address into the tag and the index of the set the
// address maps to. The offset field is dropped since hits and misses only
// depend on the block.
type Decoder struct {
	mode       TagMode
	blockSize  uint64
	numSets    uint64
	offsetBits int
	indexBits  int
	tagBits    int
	tagMask    uint64
}

// NewDecoder creates a decoder for the given block size and number of sets.
// Both must be powers of two and leave room for a non-negative tag.
func NewDecoder(blockSize, numSets int, mode TagMode) (Decoder, error) {
	if !isPowerOfTwo(blockSize) {
		return Decoder{}, &ConfigError{
			Field:  "block size",
			Value:  blockSize,
			Reason: "must be a power of two",
		}
	}

	if !isPowerOfTwo(numSets) {
		return Decoder{}, &ConfigError{
			Field:  "number of sets",
			Value:  numSets,
			Reason: "must be a power of two",
		}
	}

	if mode != TagShifted && mode != TagCoarse {
		return Decoder{}, &ConfigError{
			Field:  "tag mode",
			Value:  mode,
			Reason: "unknown tag mode",
		}
	}

	offsetBits := log2(blockSize)
	indexBits := log2(numSets)
	tagBits := addressBits - offsetBits - indexBits

	if tagBits < 0 {
		return Decoder{}, &ConfigError{
			Field:  "tag bits",
			Value:  tagBits,
			Reason: "offset and index fields do not fit in a 32-bit address",
		}
	}

	return Decoder{
		mode:       mode,
		blockSize:  uint64(blockSize),
		numSets:    uint64(numSets),
		offsetBits: offsetBits,
		indexBits:  indexBits,
		tagBits:    tagBits,
		tagMask:    (uint64(1) << tagBits) - 1,
	}, nil
}

// Decode returns the tag and the set index of the address.
func (d Decoder) Decode(address uint32) (tag uint64, index int) {
	addr := uint64(address)

	index = int((addr >> d.offsetBits) & (d.numSets - 1))

	switch d.mode {
	case TagCoarse:
		tag = addr / d.blockSize
	default:
		tag = (addr >> (d.offsetBits + d.indexBits)) & d.tagMask
	}

	return tag, index
}

// Offset returns the byte offset of the address within its block.
func (d Decoder) Offset(address uint32) uint64 {
	return uint64(address) & (d.blockSize - 1)
}

// Mode returns the tag mode of the decoder.
func (d Decoder) Mode() TagMode {
	return d.mode
}

// OffsetBits returns the width of the offset field.
func (d Decoder) OffsetBits() int {
	return d.offsetBits
}

// IndexBits returns the width of the index field.
func (d Decoder) IndexBits() int {
	return d.indexBits
}

// TagBits returns the width of the tag field in shifted mode.
func (d Decoder) TagBits() int {
	return d.tagBits
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) int {
	return bits.TrailingZeros64(uint64(n))
}
