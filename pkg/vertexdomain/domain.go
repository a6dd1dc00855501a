package vertexdomain

import (
	"context"
	"fmt"
	"sync"

	"github.com/sslab-gatech/mosaic-engine/pkg/adaptive"
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/barrier"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
	"github.com/sslab-gatech/mosaic-engine/pkg/edgeengine"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// IndexStore is an in-memory edge_block_index lookup keyed by global tile
// id, shared by every engine's IndexSource view and by the Vertex
// Reducer's per-response lookup (spec.md §4.4, §4.6 step 1).
type IndexStore struct {
	byTile map[uint64]*mosaic.EdgeBlockIndex
}

// NewIndexStore builds a store from the offline compiler's per-tile index
// records.
func NewIndexStore(entries map[uint64]*mosaic.EdgeBlockIndex) *IndexStore {
	return &IndexStore{byTile: entries}
}

// IndexFor satisfies edgeengine.IndexSource, given a *global* tile id.
// Engines should wrap this with their own local->global translation if
// their local numbering differs from the global one (spec.md §6 "Engine
// assignment").
func (s *IndexStore) IndexFor(t uint64) (*mosaic.EdgeBlockIndex, error) {
	idx, ok := s.byTile[t]
	if !ok {
		return nil, fmt.Errorf("vertexdomain: no index for tile %d", t)
	}
	return idx, nil
}

// EngineTopology describes how global tile ids map onto one Engine's local
// numbering, mirroring spec.md §6: engine e owns tiles where t mod E == e,
// local id t div E.
type EngineTopology struct {
	Engine      *edgeengine.Engine
	GlobalTiles []uint64 // local tile id -> global tile id, index-ordered
}

// Domain is the Vertex Engine orchestrator: the global vertex arrays, the
// Vertex Reducer / Global Reducer(s) / Vertex Applier(s), and the
// per-engine tile_active_current/_next bitset pairs (spec.md §4.4-§4.9).
type Domain struct {
	Arrays  *Arrays
	Program vertexprogram.Program
	XRef    *mosaic.VertexToTileXRef
	Index   *IndexStore

	Engines []EngineTopology

	Reducers []*GlobalReducer
	Reducer  *VertexReducer
	Appliers []*VertexApplier

	// TileActiveCurrent/TileActiveNext are keyed by engine index (matching
	// Engines' order), one bitset pair per edge engine.
	TileActiveCurrent map[int]*bitset.Bitset
	TileActiveNext    map[int]*bitset.Bitset

	UseSelectiveScheduling bool

	Split *adaptive.SplitPointTracker

	// applyBarrier is the Go stand-in for the original's
	// local_apply_barrier/end_apply_barrier (spec.md §5): every applier
	// commits its range, then waits here; the last arrival computes the
	// round's convergence signal once, instead of every applier racing to
	// read the freshly-written active_next bitset.
	applyBarrier *barrier.Barrier
	anyActive    bool
}

// New wires a Domain for N vertices, G global reducers, and A appliers
// splitting [0,N) into contiguous ranges (spec.md §4.7, §4.8).
func New(arrays *Arrays, program vertexprogram.Program, xref *mosaic.VertexToTileXRef, index *IndexStore, engines []EngineTopology, reducerCount, applierCount int, useSelective bool) *Domain {
	d := &Domain{
		Arrays:                 arrays,
		Program:                program,
		XRef:                   xref,
		Index:                  index,
		Engines:                engines,
		UseSelectiveScheduling: useSelective,
		TileActiveCurrent:      make(map[int]*bitset.Bitset),
		TileActiveNext:         make(map[int]*bitset.Bitset),
		Split:                  adaptive.NewSplitPointTracker(64),
	}
	for i, e := range engines {
		n := len(e.GlobalTiles)
		d.TileActiveCurrent[i] = bitset.New(n)
		d.TileActiveNext[i] = bitset.New(n)
		for local := range e.GlobalTiles {
			d.TileActiveCurrent[i].Set(local) // every tile starts active
		}
	}

	d.Reducers = make([]*GlobalReducer, reducerCount)
	for g := range d.Reducers {
		d.Reducers[g] = &GlobalReducer{
			ID:             g,
			ReducerCount:   reducerCount,
			EngineCount:    len(engines),
			Arrays:         arrays,
			Program:        program,
			XRef:           xref,
			TileActiveNext: d.TileActiveNext,
			Split:          d.Split,
		}
	}
	d.Reducer = &VertexReducer{Reducers: d.Reducers}

	d.Appliers = make([]*VertexApplier, applierCount)
	for a := range d.Appliers {
		d.Appliers[a] = &VertexApplier{Arrays: arrays, Program: program, XRef: xref, EngineCount: len(engines)}
	}
	parties := applierCount
	if parties == 0 {
		parties = 1
	}
	d.applyBarrier = barrier.New(parties)
	return d
}

// RunIteration drives one full iteration: every engine processes its
// tile_active_current set (or all tiles, if selective scheduling is
// disabled), their responses are reduced into next[], the appliers commit
// next into current, and the round-end swap rotates every double-buffered
// array. It returns whether any tile remains active anywhere (false means
// global shutdown per spec.md §4.9).
func (d *Domain) RunIteration(ctx context.Context, iteration int) (bool, error) {
	reset := d.Program.ResetTarget()
	for v := range d.Arrays.Next {
		d.Arrays.Next[v] = reset
	}

	for i, et := range d.Engines {
		var active *bitset.Bitset
		if d.UseSelectiveScheduling {
			active = d.TileActiveCurrent[i]
		}
		responses, err := et.Engine.RunRound(ctx, localOrder(len(et.GlobalTiles)), active)
		if err != nil {
			return false, fmt.Errorf("vertexdomain: engine %d round: %w", i, err)
		}
		for _, resp := range responses {
			globalTile := et.GlobalTiles[resp.TileID]
			idx, err := d.Index.IndexFor(globalTile)
			if err != nil {
				return false, err
			}
			if err := d.Reducer.Process(resp, idx); err != nil {
				return false, err
			}
		}
	}

	anyActive := d.runAppliers(iteration)

	d.Arrays.Swap()
	for i := range d.Engines {
		bitset.Swap(d.TileActiveCurrent[i], d.TileActiveNext[i])
		d.TileActiveNext[i].Clear()
	}
	for _, gr := range d.Reducers {
		gr.ResetRound()
	}

	return anyActive, nil
}

// runAppliers fans every VertexApplier out over a disjoint range of
// [0, N), each running concurrently, and joins them at applyBarrier: the
// barrier's last arrival reads active_next once (spec.md §5
// "end_apply_barrier"), rather than every goroutine racing to read it.
func (d *Domain) runAppliers(iteration int) bool {
	if len(d.Appliers) == 0 {
		return d.Arrays.ActiveNext.Any()
	}

	n := d.Arrays.N()
	chunk := (n + len(d.Appliers) - 1) / len(d.Appliers)

	var wg sync.WaitGroup
	wg.Add(len(d.Appliers))
	for i := range d.Appliers {
		i := i
		go func() {
			defer wg.Done()
			start := i * chunk
			end := start + chunk
			if end > n {
				end = n
			}
			if start < end {
				d.Appliers[i].ApplyRange(start, end, iteration, d.TileActiveNext)
			}
			d.applyBarrier.WaitFunc(func() {
				d.anyActive = d.Arrays.ActiveNext.Any()
			})
		}()
	}
	wg.Wait()
	return d.anyActive
}

func localOrder(n int) []uint64 {
	order := make([]uint64, n)
	for i := range order {
		order[i] = uint64(i)
	}
	return order
}
