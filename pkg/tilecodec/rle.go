// Package tilecodec encodes and decodes the on-disk edge_block and
// edge_block_index payloads (spec.md §3), including the run-length-encoded
// target stream.
package tilecodec

import mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"

// ExpandRLE decodes a run-length-encoded tgt stream into one local tgt id
// per edge, matching spec.md §3 ("a run of count 0 decodes to 65536") and
// the round-trip test in spec.md §8 scenario 4.
func ExpandRLE(runs []mosaic.RLERun) []uint16 {
	total := 0
	for _, r := range runs {
		total += r.DecodedCount()
	}
	out := make([]uint16, 0, total)
	for _, r := range runs {
		n := r.DecodedCount()
		for i := 0; i < n; i++ {
			out = append(out, r.ID)
		}
	}
	return out
}

// CompactRLE is the inverse of ExpandRLE: it collapses consecutive equal
// tgt ids into runs, splitting any run longer than 65536 edges (since
// count==0 is reserved to mean 65536, the maximum literal count is 65535).
func CompactRLE(tgt []uint16) []mosaic.RLERun {
	var runs []mosaic.RLERun
	i := 0
	for i < len(tgt) {
		j := i + 1
		for j < len(tgt) && tgt[j] == tgt[i] && j-i < mosaic.RLEZeroRunLength {
			j++
		}
		n := j - i
		count := uint16(n)
		if n == mosaic.RLEZeroRunLength {
			count = 0
		}
		runs = append(runs, mosaic.RLERun{Count: count, ID: tgt[i]})
		i = j
	}
	return runs
}

// SumRunCounts returns the total decoded edge count across runs, used to
// check the RLE-consistency invariant (spec.md §8): Σ run.count (with
// count==0 decoded as 65536) must equal a tile's count_edges.
func SumRunCounts(runs []mosaic.RLERun) uint64 {
	var sum uint64
	for _, r := range runs {
		sum += uint64(r.DecodedCount())
	}
	return sum
}

// RLECursor advances in lockstep with the edge stream even when a thread
// skips an edge (inactive source, spec.md §4.3 "still advance the RLE
// cursor so the tgt stream stays in lockstep"). It exposes the tgt id at
// the current position without mutating until Advance is called.
type RLECursor struct {
	runs       []mosaic.RLERun
	runIdx     int
	posInRun   int
}

// NewRLECursor starts a cursor at the first edge of runs.
func NewRLECursor(runs []mosaic.RLERun) *RLECursor {
	return &RLECursor{runs: runs}
}

// Tgt returns the local tgt id at the cursor's current position.
func (c *RLECursor) Tgt() uint16 {
	return c.runs[c.runIdx].ID
}

// Advance moves the cursor forward by one edge, crossing into the next run
// when the current run is exhausted.
func (c *RLECursor) Advance() {
	c.posInRun++
	if c.posInRun >= c.runs[c.runIdx].DecodedCount() {
		c.posInRun = 0
		c.runIdx++
	}
}

// AdvanceBy moves the cursor forward by n edges, used when a
// tile-processor thread skips an entire scheduling stripe of inactive
// source edges (spec.md §4.3).
func (c *RLECursor) AdvanceBy(n int) {
	for i := 0; i < n; i++ {
		c.Advance()
	}
}

// Done reports whether the cursor has consumed every run.
func (c *RLECursor) Done() bool {
	return c.runIdx >= len(c.runs)
}
