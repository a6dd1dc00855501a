package vertexdomain

import (
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
)

// DirectFetcher implements edgeengine.SourceFetcher in "DirectAccess" mode
// (spec.md §4.5): for each local src i, out[i] = current[src_index[i]].
// It reads Arrays.Current directly rather than routing through a Global
// Fetcher request ring, appropriate when the Tile Processor and Vertex
// Domain share memory.
type DirectFetcher struct {
	Arrays       *Arrays
	NeedDegrees  bool
	NeedActive   bool
}

// FetchSource builds the packed source_vertex_block for one tile, plus its
// source-degree block and active_src bitset when the algorithm's
// capability set demands them.
func (f *DirectFetcher) FetchSource(tileID uint64, idx *mosaic.EdgeBlockIndex) ([]float64, []mosaic.VertexDegree, *bitset.Bitset, error) {
	src := make([]float64, idx.CountSrc)
	var deg []mosaic.VertexDegree
	if f.NeedDegrees {
		deg = make([]mosaic.VertexDegree, idx.CountSrc)
	}
	var active *bitset.Bitset
	if f.NeedActive {
		active = bitset.New(int(idx.CountSrc))
	}
	for i, g := range idx.SrcIndex {
		src[i] = f.Arrays.Current[g]
		if deg != nil {
			deg[i] = f.Arrays.Degrees[g]
		}
		if active != nil && f.Arrays.ActiveCurrent.Get(int(g)) {
			active.Set(i)
		}
	}
	return src, deg, active, nil
}

// ConstantFetcher fills every source slot with a fixed value — the
// "ConstantValue" debug/micro-benchmark mode from spec.md §4.5.
type ConstantFetcher struct {
	Value float64
}

func (f *ConstantFetcher) FetchSource(tileID uint64, idx *mosaic.EdgeBlockIndex) ([]float64, []mosaic.VertexDegree, *bitset.Bitset, error) {
	src := make([]float64, idx.CountSrc)
	for i := range src {
		src[i] = f.Value
	}
	return src, nil, nil, nil
}

// FakeFetcher emits empty blocks — spec.md §4.5 "Fake" mode paired with a
// Tile Processor configured the same way, used for micro-benchmarking the
// ring substrate in isolation from real vertex data.
type FakeFetcher struct{}

func (FakeFetcher) FetchSource(tileID uint64, idx *mosaic.EdgeBlockIndex) ([]float64, []mosaic.VertexDegree, *bitset.Bitset, error) {
	return make([]float64, idx.CountSrc), nil, nil, nil
}
