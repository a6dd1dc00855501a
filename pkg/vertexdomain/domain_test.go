package vertexdomain

import (
	"context"
	"testing"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/edgeengine"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram/algorithms"
)

// fakeTileSource/fakeIndexSource serve the single-tile BFS graph from
// spec.md §8 scenario 1: V = {0..4}, E = {(0,1),(0,2),(1,3),(2,3),(3,4)}.
type fakeTileSource struct {
	stats []mosaic.TileStats
	edges *mosaic.EdgeBlock
}

func (s *fakeTileSource) Stats() []mosaic.TileStats                     { return s.stats }
func (s *fakeTileSource) ReadEdgeBlock(uint64) (*mosaic.EdgeBlock, error) { return s.edges, nil }

type fakeIndexSource struct{ idx *mosaic.EdgeBlockIndex }

func (s *fakeIndexSource) IndexFor(uint64) (*mosaic.EdgeBlockIndex, error) { return s.idx, nil }

func buildScenario1(t *testing.T) *Domain {
	t.Helper()

	edges := &mosaic.EdgeBlock{
		BlockID: 0,
		Src:     []uint16{0, 0, 1, 2, 3},
		Tgt:     []uint16{1, 2, 3, 3, 4},
	}
	source := &fakeTileSource{
		stats: []mosaic.TileStats{{BlockID: 0, CountVertexSrc: 5, CountVertexTgt: 5, CountEdges: 5}},
		edges: edges,
	}
	idx := &mosaic.EdgeBlockIndex{
		BlockID:  0,
		CountSrc: 5, CountTgt: 5,
		SrcIndex: []uint64{0, 1, 2, 3, 4},
		TgtIndex: []uint64{0, 1, 2, 3, 4},
	}
	indexSrc := &fakeIndexSource{idx: idx}

	arrays := NewArrays(5, make([]mosaic.VertexDegree, 5), []float64{1, 0, 0, 0, 0})
	fetcher := &DirectFetcher{Arrays: arrays, NeedActive: true}

	eng := edgeengine.New(0, source, indexSrc, algorithms.Reachability{}, fetcher, 1, 0, 1<<20)
	t.Cleanup(eng.Close)

	xref := &mosaic.VertexToTileXRef{
		Offset: []uint32{0, 1, 2, 3, 4, 5},
		Index:  []uint32{0, 0, 0, 0, 0},
	}

	store := NewIndexStore(map[uint64]*mosaic.EdgeBlockIndex{0: idx})
	topo := []EngineTopology{{Engine: eng, GlobalTiles: []uint64{0}}}

	return New(arrays, algorithms.Reachability{}, xref, store, topo, 1, 1, true)
}

func TestDomainRunIterationReachabilityScenario(t *testing.T) {
	d := buildScenario1(t)
	ctx := context.Background()

	want := [][]float64{
		{1, 1, 1, 0, 0}, // after iteration 1
		{1, 1, 1, 1, 0}, // after iteration 2
		{1, 1, 1, 1, 1}, // after iteration 3
	}

	for i, w := range want {
		active, err := d.RunIteration(ctx, i)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		if !active {
			t.Fatalf("iteration %d: expected continued activity, got shutdown", i)
		}
		if got := d.Arrays.Current; !floatsEqual(got, w) {
			t.Fatalf("iteration %d: current = %v, want %v", i, got, w)
		}
	}

	// Iteration 4 (index 3): no tile's source frontier has any outgoing
	// edge left to relax, so current is unchanged and shutdown is raised.
	active, err := d.RunIteration(ctx, 3)
	if err != nil {
		t.Fatalf("iteration 3: %v", err)
	}
	if active {
		t.Fatalf("expected global shutdown on iteration 4, still active")
	}
	if got := []float64{1, 1, 1, 1, 1}; !floatsEqual(d.Arrays.Current, got) {
		t.Fatalf("current after convergence = %v, want %v", d.Arrays.Current, got)
	}
}

func floatsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
