package vertexdomain

import (
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// VertexApplier owns a contiguous range of [0, N) and commits each vertex's
// final next[] value at iteration end (spec.md §4.8).
type VertexApplier struct {
	Arrays      *Arrays
	Program     vertexprogram.Program
	XRef        *mosaic.VertexToTileXRef
	EngineCount int
}

// ApplyRange calls Program.Apply for every vertex in [start, end) and, for
// each active-next vertex, sets the bits of its tiles directly in
// localTiles, the caller's per-engine tile bitsets keyed by engine id. It
// returns nothing.
func (a *VertexApplier) ApplyRange(start, end, iteration int, localTiles map[int]*bitset.Bitset) {
	for v := start; v < end; v++ {
		next, activeNext, changed := a.Program.Apply(a.Arrays.Current[v], a.Arrays.Next[v], uint64(v), a.Arrays.Degrees[v], iteration)
		a.Arrays.Next[v] = next
		if changed {
			a.Arrays.Changed.Set(v)
		}
		if activeNext {
			if !a.Arrays.ActiveNext.Set(v) {
				// Already active (e.g. set by the Global Reducer's source
				// pass); still propagate tile activation below.
			}
			a.propagateTiles(uint64(v), localTiles)
		}
	}
}

func (a *VertexApplier) propagateTiles(v uint64, localTiles map[int]*bitset.Bitset) {
	if a.XRef == nil {
		return
	}
	for _, tile := range a.XRef.TilesFor(v) {
		engine, local := mosaic.EngineOf(uint64(tile), a.EngineCount)
		if bs := localTiles[engine]; bs != nil {
			bs.Set(int(local))
		}
	}
}
