package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/edgeengine"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexdomain"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram/algorithms"
)

// fakeTileSource/fakeIndexSource serve the single-tile reachability graph
// from spec.md §8 scenario 1: V = {0..4}, E = {(0,1),(0,2),(1,3),(2,3),(3,4)}.
type fakeTileSource struct {
	stats []mosaic.TileStats
	edges *mosaic.EdgeBlock
}

func (s *fakeTileSource) Stats() []mosaic.TileStats { return s.stats }
func (s *fakeTileSource) ReadEdgeBlock(uint64) (*mosaic.EdgeBlock, error) {
	return s.edges, nil
}

type fakeIndexSource struct{ idx *mosaic.EdgeBlockIndex }

func (s *fakeIndexSource) IndexFor(uint64) (*mosaic.EdgeBlockIndex, error) { return s.idx, nil }

func buildScenario(t *testing.T, maxIterations int, resultDir string) *Pipeline {
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

	arrays := vertexdomain.NewArrays(5, make([]mosaic.VertexDegree, 5), []float64{1, 0, 0, 0, 0})
	fetcher := &vertexdomain.DirectFetcher{Arrays: arrays, NeedActive: true}

	eng := edgeengine.New(0, source, indexSrc, algorithms.Reachability{}, fetcher, 1, 0, 1<<20)
	t.Cleanup(eng.Close)

	xref := &mosaic.VertexToTileXRef{
		Offset: []uint32{0, 1, 2, 3, 4, 5},
		Index:  []uint32{0, 0, 0, 0, 0},
	}

	store := vertexdomain.NewIndexStore(map[uint64]*mosaic.EdgeBlockIndex{0: idx})
	topo := []vertexdomain.EngineTopology{{Engine: eng, GlobalTiles: []uint64{0}}}

	domain := vertexdomain.New(arrays, algorithms.Reachability{}, xref, store, topo, 1, 1, true)

	return &Pipeline{
		Domain:        domain,
		MaxIterations: maxIterations,
		Results:       &ResultWriter{Dir: resultDir},
	}
}

func TestPipelineConvergesAndWritesResults(t *testing.T) {
	dir := t.TempDir()
	p := buildScenario(t, 10, dir)

	res, err := p.Start(context.Background())
	require.NoError(t, err)
	require.True(t, res.Converged)
	require.Equal(t, 4, res.Iterations) // 3 relaxations + 1 no-op convergence check
	require.Equal(t, []float64{1, 1, 1, 1, 1}, res.FinalCurrent)

	for i := 0; i < res.Iterations; i++ {
		_, err := os.Stat(filepath.Join(dir, resultFileName(i)))
		require.NoError(t, err)
	}
}

func TestPipelineStopsAtMaxIterations(t *testing.T) {
	dir := t.TempDir()
	p := buildScenario(t, 1, dir)

	res, err := p.Start(context.Background())
	require.NoError(t, err)
	require.False(t, res.Converged)
	require.Equal(t, 1, res.Iterations)
	require.Equal(t, []float64{1, 1, 1, 0, 0}, res.FinalCurrent)
}

func resultFileName(iteration int) string {
	return fmt.Sprintf("vertex-output-%d.data", iteration)
}
