// Package vertexdomain implements the Vertex Engine half of the pipeline:
// the global double-buffered vertex arrays (spec.md §3), the Vertex
// Fetcher (§4.5), Vertex Reducer (§4.6), Global Reducer (§4.7), and Vertex
// Applier (§4.8).
package vertexdomain

import (
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
)

// Arrays is the Vertex Domain's single global vertex array pair, double
// buffered per spec.md §3. current is read-only during an iteration; next
// is owned exclusively by the stripe's Global Reducer until the round-end
// swap.
type Arrays struct {
	Current []float64
	Next     []float64
	Degrees  []mosaic.VertexDegree

	ActiveCurrent *bitset.Bitset
	ActiveNext    *bitset.Bitset
	Changed       *bitset.Bitset
}

// NewArrays allocates the N-vertex arrays, copying initial into Current and
// marking every non-zero entry of it active.
func NewArrays(n int, degrees []mosaic.VertexDegree, initial []float64) *Arrays {
	a := &Arrays{
		Current:       make([]float64, n),
		Next:          make([]float64, n),
		Degrees:       degrees,
		ActiveCurrent: bitset.New(n),
		ActiveNext:    bitset.New(n),
		Changed:       bitset.New(n),
	}
	copy(a.Current, initial)
	for v, val := range a.Current {
		if val != 0 {
			a.ActiveCurrent.Set(v)
		}
	}
	return a
}

// N returns the vertex count.
func (a *Arrays) N() int { return len(a.Current) }

// Swap performs the iteration-boundary round reset (spec.md §4.8
// "resetRound"): swap current/next, swap active bitsets, zero the new
// active_next and changed.
func (a *Arrays) Swap() {
	a.Current, a.Next = a.Next, a.Current
	bitset.Swap(a.ActiveCurrent, a.ActiveNext)
	a.ActiveNext.Clear()
	a.Changed.Clear()
}
