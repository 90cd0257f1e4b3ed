// Package cache simulates how a single-level cache responds to a stream of
// memory addresses.
//
// A Simulator owns one cache and its counters. Each call to Process decodes
// the address into a tag and a set index, lets the placement policy decide if
// the block is present, and updates the hit and access counters.
package cache

import (
	"github.com/sarchlab/cachesim/hooking"
)

// HookPosAccess is triggered after every access. The item is an
// AccessResult.
var HookPosAccess = &hooking.HookPos{Name: "Access"}

// HookPosEvict is triggered when an access replaces an installed line, before
// HookPosAccess of the same access. The item is an Eviction.
var HookPosEvict = &hooking.HookPos{Name: "Evict"}

var _ hooking.Hookable = (*Simulator)(nil)

// AccessResult describes what happened to one address.
type AccessResult struct {
	Address    uint32
	Index      int
	Tag        uint64
	Way        int
	Hit        bool
	Evicted    bool
	EvictedTag uint64
}

// Eviction describes a block that left the cache.
type Eviction struct {
	// Address is the access that caused the replacement.
	Address uint32
	Index   int
	Way     int
	Tag     uint64
}

// Statistics holds the counters of one simulation run.
type Statistics struct {
	Accesses  uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// A Simulator drives accesses through one cache.
type Simulator struct {
	hooking.HookableBase

	name     string
	geometry Geometry
	decoder  Decoder
	policy   Policy
	stats    Statistics
}

// Name returns the name given at build time.
func (s *Simulator) Name() string {
	return s.name
}

// PolicyName describes the placement policy, e.g. "direct-mapped".
func (s *Simulator) PolicyName() string {
	return s.policy.Name()
}

// Geometry returns the shape of the cache.
func (s *Simulator) Geometry() Geometry {
	return s.geometry
}

// TagMode returns how the simulator derives tags.
func (s *Simulator) TagMode() TagMode {
	return s.decoder.Mode()
}

// Process simulates one access and tells if it hits.
func (s *Simulator) Process(address uint32) bool {
	return s.Access(address).Hit
}

// Access simulates one access and returns the full result.
func (s *Simulator) Access(address uint32) AccessResult {
	s.stats.Accesses++

	tag, index := s.decoder.Decode(address)
	outcome := s.policy.Access(tag, index, s.stats.Accesses)

	if outcome.Hit {
		s.stats.Hits++
	} else {
		s.stats.Misses++
	}

	if outcome.Evicted {
		s.stats.Evictions++
	}

	result := AccessResult{
		Address:    address,
		Index:      index,
		Tag:        tag,
		Way:        outcome.Way,
		Hit:        outcome.Hit,
		Evicted:    outcome.Evicted,
		EvictedTag: outcome.EvictedTag,
	}

	if result.Evicted && s.Watched(HookPosEvict) {
		s.InvokeHook(hooking.HookCtx{
			Site: s,
			Pos:  HookPosEvict,
			Item: Eviction{
				Address: address,
				Index:   index,
				Way:     result.Way,
				Tag:     result.EvictedTag,
			},
		})
	}

	if s.Watched(HookPosAccess) {
		s.InvokeHook(hooking.HookCtx{
			Site: s,
			Pos:  HookPosAccess,
			Item: result,
		})
	}

	return result
}

// Set returns a copy of the lines of the set with the index.
func (s *Simulator) Set(index int) Set {
	return s.policy.Set(index)
}

// Stats returns the counters accumulated so far.
func (s *Simulator) Stats() Statistics {
	return s.stats
}

// Summary derives the hit rate from the counters.
func (s *Simulator) Summary() Summary {
	return NewSummary(s.name, s.policy.Name(), s.geometry, s.stats)
}

// Reset invalidates every line and clears the counters.
func (s *Simulator) Reset() {
	s.policy.Reset()
	s.stats = Statistics{}
}
