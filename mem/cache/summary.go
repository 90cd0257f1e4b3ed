package cache

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
)

// A Summary describes the outcome of one simulation run.
type Summary struct {
	Name          string
	Policy        string
	CacheByteSize int
	BlockSize     int
	NumSets       int
	Associativity int
	Accesses      uint64
	Hits          uint64
	Misses        uint64
	Evictions     uint64

	// HitRate is Hits/Accesses, or NaN if there was no access.
	HitRate float64
}

// NewSummary creates a summary from the counters of a run.
func NewSummary(
	name, policy string,
	g Geometry,
	stats Statistics,
) Summary {
	r := Summary{
		Name:          name,
		Policy:        policy,
		CacheByteSize: g.CacheByteSize,
		BlockSize:     g.BlockSize,
		NumSets:       g.NumSets,
		Associativity: g.Associativity,
		Accesses:      stats.Accesses,
		Hits:          stats.Hits,
		Misses:        stats.Misses,
		Evictions:     stats.Evictions,
		HitRate:       HitRate(stats.Hits, stats.Accesses),
	}

	return r
}

// HitRate returns hits/accesses, or NaN if accesses is 0.
func HitRate(hits, accesses uint64) float64 {
	if accesses == 0 {
		return math.NaN()
	}

	return float64(hits) / float64(accesses)
}

// HitRateDefined tells if at least one access was simulated.
func (r Summary) HitRateDefined() bool {
	return r.Accesses > 0
}

// FormatHitRate prints the hit rate, or "undefined" if there was no access.
func (r Summary) FormatHitRate() string {
	if !r.HitRateDefined() {
		return "undefined"
	}

	return fmt.Sprintf("%.6f", r.HitRate)
}

func (r Summary) String() string {
	return fmt.Sprintf(
		"%s (%s, %dB, %dB blocks, %d sets): "+
			"%d accesses, %d hits, hit rate %s",
		r.Name, r.Policy, r.CacheByteSize, r.BlockSize, r.NumSets,
		r.Accesses, r.Hits, r.FormatHitRate())
}

type reportJSON struct {
	Name          string   `json:"name"`
	Policy        string   `json:"policy"`
	CacheByteSize int      `json:"cache_byte_size"`
	BlockSize     int      `json:"block_size"`
	NumSets       int      `json:"num_sets"`
	Associativity int      `json:"associativity"`
	Accesses      uint64   `json:"accesses"`
	Hits          uint64   `json:"hits"`
	Misses        uint64   `json:"misses"`
	Evictions     uint64   `json:"evictions"`
	HitRate       *float64 `json:"hit_rate"`
}

// MarshalJSON encodes an undefined hit rate as null.
func (r Summary) MarshalJSON() ([]byte, error) {
	j := reportJSON{
		Name:          r.Name,
		Policy:        r.Policy,
		CacheByteSize: r.CacheByteSize,
		BlockSize:     r.BlockSize,
		NumSets:       r.NumSets,
		Associativity: r.Associativity,
		Accesses:      r.Accesses,
		Hits:          r.Hits,
		Misses:        r.Misses,
		Evictions:     r.Evictions,
	}

	if r.HitRateDefined() {
		hitRate := r.HitRate
		j.HitRate = &hitRate
	}

	return json.Marshal(j)
}

// UnmarshalJSON decodes a null hit rate as NaN.
func (r *Summary) UnmarshalJSON(data []byte) error {
	var j reportJSON

	err := json.Unmarshal(data, &j)
	if err != nil {
		return err
	}

	*r = Summary{
		Name:          j.Name,
		Policy:        j.Policy,
		CacheByteSize: j.CacheByteSize,
		BlockSize:     j.BlockSize,
		NumSets:       j.NumSets,
		Associativity: j.Associativity,
		Accesses:      j.Accesses,
		Hits:          j.Hits,
		Misses:        j.Misses,
		Evictions:     j.Evictions,
		HitRate:       math.NaN(),
	}

	if j.HitRate != nil {
		r.HitRate = *j.HitRate
	}

	return nil
}

// WriteSummaries prints the summaries as a table, one row per simulator.
func WriteSummaries(w io.Writer, reports []Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{
		"Name", "Policy", "Cache Size", "Block Size", "Sets", "Ways",
		"Accesses", "Hits", "Misses", "Evictions", "Hit Rate",
	})

	for _, r := range reports {
		t.AppendRow(table.Row{
			r.Name, r.Policy, r.CacheByteSize, r.BlockSize, r.NumSets,
			r.Associativity, r.Accesses, r.Hits, r.Misses, r.Evictions,
			r.FormatHitRate(),
		})
	}

	t.Render()
}
