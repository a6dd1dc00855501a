package vertexdomain

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"

	"github.com/sslab-gatech/mosaic-engine/pkg/adaptive"
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
	"github.com/sslab-gatech/mosaic-engine/pkg/edgeengine"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// VertexReducer consumes Tile Processor responses and the matching
// edge_block_index, then routes the per-target contributions to the
// Global Reducer(s) whose stripes they fall in (spec.md §4.6).
//
// Routing decision (SPEC_FULL.md §D.2): every configured reducer receives
// every response and filters to the cells it actually owns; a murmur3 hash
// of the response's tile id only picks which reducer receives it first (no
// majority of tgt_index entries is computed). Stripe exclusivity itself is
// enforced by GlobalReducer.Process, never by this routing choice.
type VertexReducer struct {
	Reducers []*GlobalReducer
}

// Process matches one ProcessedVertexBlock against its edge_block_index
// and forwards it to every configured Global Reducer.
func (r *VertexReducer) Process(resp edgeengine.ProcessedVertexBlock, idx *mosaic.EdgeBlockIndex) error {
	primary := primaryStripe(resp.TileID, len(r.Reducers))
	if gr := r.Reducers[primary]; gr != nil {
		if err := gr.Process(resp, idx); err != nil {
			return err
		}
	}
	for i, gr := range r.Reducers {
		if i == primary {
			continue
		}
		if err := gr.Process(resp, idx); err != nil {
			return err
		}
	}
	return nil
}

// primaryStripe hashes a tile id with murmur3 to pick which reducer receives
// the response first, purely a delivery order — correctness never depends
// on which reducer it picks.
func primaryStripe(blockID uint64, reducerCount int) int {
	if reducerCount <= 0 {
		return 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], blockID)
	h := murmur3.Sum64(buf[:])
	return int(h % uint64(reducerCount))
}

// GlobalReducer owns a disjoint set of vertex stripes, per
// owner(v) = (v / STRIPE) mod G (spec.md §4.7).
type GlobalReducer struct {
	ID           int
	ReducerCount int
	EngineCount  int

	Arrays  *Arrays
	Program vertexprogram.Program
	XRef    *mosaic.VertexToTileXRef

	// TileActiveNext is keyed by edge-engine id; each bitset is that
	// engine's local tile_active_next, length = tiles owned by that engine.
	TileActiveNext map[int]*bitset.Bitset

	Split *adaptive.SplitPointTracker

	shutdown bool
}

// Process folds one tile's contribution into this reducer's owned stripe
// of next[] and propagates newly-active vertices into tile_active_next
// (spec.md §4.7 steps 1-6).
func (gr *GlobalReducer) Process(resp edgeengine.ProcessedVertexBlock, idx *mosaic.EdgeBlockIndex) error {
	if resp.Shutdown {
		gr.shutdown = true
		return nil
	}
	if resp.Dummy {
		return nil
	}

	caps := gr.Program.Capabilities()

	// Target pass.
	for j, g := range idx.TgtIndex {
		if mosaic.StripeOf(g, gr.ReducerCount) != gr.ID {
			continue
		}
		partial := resp.TgtVertices[j]
		gr.Arrays.Next[g] = gr.Program.ReduceVertex(gr.Arrays.Next[g], partial, g, gr.Arrays.Degrees[g])
		if caps.NeedActiveTargetBlock && resp.ActiveTgt != nil && resp.ActiveTgt.Get(j) {
			gr.activateVertex(g)
		}
	}

	// Source pass: propagate active-source transitions to tiles.
	if caps.NeedActiveSourceBlock && resp.ActiveSrc != nil {
		for k, g := range idx.SrcIndex {
			if mosaic.StripeOf(g, gr.ReducerCount) != gr.ID {
				continue
			}
			if resp.ActiveSrc.Get(k) {
				gr.activateVertex(g)
			}
		}
	}

	if resp.Sampled && gr.Split != nil && gr.ID == 0 {
		gr.Split.Observe(adaptive.Sample{Edges: uint64(resp.CountEdges), Nanos: uint64(resp.ProcessingNanos)})
	}
	return nil
}

// activateVertex sets g's active_next bit and, on a genuine 0->1
// transition, marks every tile g participates in active-next in the
// owning edge engine (spec.md §4.7 step 5, §8 "Active-tile monotonicity").
func (gr *GlobalReducer) activateVertex(g uint64) {
	if !gr.Arrays.ActiveNext.Set(int(g)) {
		return
	}
	if gr.XRef == nil {
		return
	}
	for _, tile := range gr.XRef.TilesFor(g) {
		engine, local := mosaic.EngineOf(uint64(tile), gr.EngineCount)
		if bs := gr.TileActiveNext[engine]; bs != nil {
			bs.Set(int(local))
		}
	}
}

// ShutdownObserved reports whether this reducer has seen a shutdown-flagged
// response this round.
func (gr *GlobalReducer) ShutdownObserved() bool { return gr.shutdown }

// ResetRound clears the per-round shutdown flag (not the vertex arrays,
// which Domain.Swap handles) ahead of the next iteration.
func (gr *GlobalReducer) ResetRound() { gr.shutdown = false }
