// Package edgeengine implements the Edge Engine half of the pipeline:
// Tile Reader (spec.md §4.2) and Tile Processor + Followers (spec.md §4.3).
// It converts on-disk edge tiles into processed-vertex responses consumed
// by the Vertex Domain's Vertex Reducer.
package edgeengine

import (
	"github.com/goccy/go-json"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
)

// TileSource abstracts the per-engine edge file (paths_to_tile[e]/tiles.dat,
// spec.md §6). Production wiring uses diskio.TileFile, which reads
// length-prefixed records; tests substitute an in-memory source.
type TileSource interface {
	// Stats returns the per-engine tile_stats.dat contents, ordered by
	// local tile id.
	Stats() []mosaic.TileStats
	// ReadEdgeBlock returns the decoded edge_block for local tile id t.
	ReadEdgeBlock(t uint64) (*mosaic.EdgeBlock, error)
}

// SourceFetcher is the Vertex Engine's half of the Tile Processor's input
// contract (spec.md §4.5 "Vertex Fetcher"): given a tile's edge_block_index,
// it returns the packed source-vertex block (and, if the algorithm demands
// them, source degrees and the active-source bitset). Defined here, rather
// than imported from vertexdomain, so edgeengine has no dependency on it —
// vertexdomain implements this interface instead.
type SourceFetcher interface {
	FetchSource(tileID uint64, idx *mosaic.EdgeBlockIndex) (src []float64, srcDeg []mosaic.VertexDegree, activeSrc *bitset.Bitset, err error)
}

// IndexSource abstracts the per-engine index file (paths_to_meta[e]/meta.dat,
// spec.md §6), read by the Vertex Engine's Index Reader but needed here too:
// the Tile Processor must know count_vertex_src/count_vertex_tgt before it
// can size processed_vertex_block.
type IndexSource interface {
	IndexFor(t uint64) (*mosaic.EdgeBlockIndex, error)
}

// tileJob is the wire payload a Tile Reader publishes onto the
// reader-to-processor ring: the raw tile plus enough index metadata for the
// processor to size its output block without a second disk read.
type tileJob struct {
	TileID    uint64
	Stats     mosaic.TileStats
	Edges     *mosaic.EdgeBlock
	Index     *mosaic.EdgeBlockIndex
	Shutdown  bool
	Dummy     bool // selective-scheduling skip: counted, never processed
}

// ProcessedVertexBlock is the Tile Processor's response, consumed by the
// Vertex Reducer (spec.md §4.3.4, §4.6).
type ProcessedVertexBlock struct {
	TileID          uint64
	TgtVertices     []float64
	ActiveSrc       *bitset.Bitset // tile-local, optional per capability set
	ActiveTgt       *bitset.Bitset
	CountEdges      uint32
	ProcessingNanos int64
	Sampled         bool
	Shutdown        bool
	Dummy           bool
}

func encode(v any) ([]byte, error) { return json.Marshal(v) }
func decode(data []byte, v any) error { return json.Unmarshal(data, v) }
