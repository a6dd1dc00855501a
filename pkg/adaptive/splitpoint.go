// Package adaptive implements the tile-partition split-point feedback loop
// from spec.md §4.3.2 and §9 ("Adaptive partition split"): Global Reducer 0
// aggregates sampled (edges, nanos) pairs from Tile Processors into a
// moving average edge rate, which in turn adjusts the split point every
// Tile Processor uses to choose its per-tile partition count P.
//
// spec.md §9 asks for this to be modeled as "an observable counter with a
// publish/subscribe contract rather than a shared global mutable" — here
// that is a SplitPointTracker instance handed to every Tile Processor and
// the one Global Reducer that publishes into it, instead of a package-level
// variable.
package adaptive

import (
	"math"
	"sync"

	"github.com/montanaflynn/stats"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// Sample is one (edges, nanos) observation from a sampled tile.
type Sample struct {
	Edges uint64
	Nanos uint64
}

// SplitPointTracker owns the moving average of edge-processing rate and
// derives the current break point from it.
type SplitPointTracker struct {
	mu      sync.Mutex
	window  []float64 // edges/nanosecond observations, most recent last
	maxLen  int
	current uint64
}

// NewSplitPointTracker creates a tracker seeded at InitTileBreakPoint,
// retaining up to windowSize samples for the moving average.
func NewSplitPointTracker(windowSize int) *SplitPointTracker {
	if windowSize <= 0 {
		windowSize = 64
	}
	return &SplitPointTracker{maxLen: windowSize, current: mosaic.InitTileBreakPoint}
}

// Observe folds in a new sample and recomputes the break point. It is safe
// for the Global Reducer to call concurrently with readers of Current.
func (t *SplitPointTracker) Observe(s Sample) {
	if s.Nanos == 0 {
		return
	}
	rate := float64(s.Edges) / float64(s.Nanos)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.window = append(t.window, rate)
	if len(t.window) > t.maxLen {
		t.window = t.window[len(t.window)-t.maxLen:]
	}
	avg, err := stats.Mean(t.window)
	if err != nil || math.IsNaN(avg) {
		return
	}
	// A moving-target break point in edges: hold the per-tile work close
	// to a fixed wall-clock budget implied by the observed rate, clamped
	// to [MIN, MAX] per spec.md's datatypes.h constants.
	const targetNanos = 1_000_000 // 1ms per partition, a stable default
	bp := uint64(avg * float64(targetNanos))
	if bp < mosaic.MinTileBreakPoint {
		bp = mosaic.MinTileBreakPoint
	}
	if bp > mosaic.MaxTileBreakPoint {
		bp = mosaic.MaxTileBreakPoint
	}
	t.current = bp
}

// Current returns the break point Tile Processors should target when
// choosing their partition count P.
func (t *SplitPointTracker) Current() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// PartitionCount chooses P for a tile with the given edge count, keeping
// expected per-partition work close to the tracker's current break point,
// clamped to [min, max] partitions (spec.md §4.3.2).
func (t *SplitPointTracker) PartitionCount(countEdges uint64, min, max int) int {
	bp := t.Current()
	if bp == 0 {
		bp = mosaic.InitTileBreakPoint
	}
	p := int(countEdges / bp)
	if p < min {
		p = min
	}
	if p > max {
		p = max
	}
	return p
}

// ShouldSample reports whether tile index i (of a monotonically increasing
// stream of tiles) falls within the SampleThreshold fraction sampled for
// timing feedback (spec.md §4.3.2 "SAMPLE_THRESHOLD ≈ 1%").
func ShouldSample(tileIndex uint64) bool {
	const everyN = uint64(1 / mosaic.SampleThreshold)
	return tileIndex%everyN == 0
}
