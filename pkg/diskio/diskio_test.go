package diskio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

func TestScenarioStatsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stat.dat")
	want := mosaic.ScenarioStats{
		CountVertices:       5,
		CountTiles:          1,
		IsIndex32Bits:       true,
		IsWeightedGraph:     false,
		Index33BitExtension: false,
		TileOrder:           mosaic.TileOrderRowFirst,
	}
	require.NoError(t, WriteScenarioStats(path, want))
	got, err := ReadScenarioStats(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestVertexDegreesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vertex_deg.dat")
	want := []mosaic.VertexDegree{{InDegree: 0, OutDegree: 2}, {InDegree: 1, OutDegree: 1}}
	require.NoError(t, WriteVertexDegrees(path, want))
	got, err := ReadVertexDegrees(path, len(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestVertexToTileXRefRoundTrip(t *testing.T) {
	dir := t.TempDir()
	countPath := filepath.Join(dir, "vertex_to_tile_count.dat")
	indexPath := filepath.Join(dir, "vertex_to_tile_index.dat")

	counts := []uint32{2, 1, 0}
	indexData := []uint32{0, 1, 0}

	require.NoError(t, writeU32File(countPath, counts))
	require.NoError(t, writeU32File(indexPath, indexData))

	got, err := ReadVertexToTileXRef(countPath, indexPath, len(counts))
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 2, 3, 3}, got.Offset)
	require.Equal(t, []uint32{0, 1, 0}, got.Index)
}

func TestTileStatsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tile_stats.dat")
	want := []mosaic.TileStats{
		{BlockID: 0, CountVertexSrc: 5, CountVertexTgt: 5, CountEdges: 5, UseRLE: false},
		{BlockID: 1, CountVertexSrc: 3, CountVertexTgt: 4, CountEdges: 6, UseRLE: true},
	}
	require.NoError(t, WriteTileStats(path, want))
	got, err := ReadTileStats(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestTileFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	stats := []mosaic.TileStats{
		{BlockID: 0, CountVertexSrc: 5, CountVertexTgt: 5, CountEdges: 5, UseRLE: false},
	}
	blocks := []*mosaic.EdgeBlock{
		{BlockID: 0, Src: []uint16{0, 0, 1, 2, 3}, Tgt: []uint16{1, 2, 3, 3, 4}},
	}
	indices := []*mosaic.EdgeBlockIndex{
		{BlockID: 0, CountSrc: 5, CountTgt: 5, SrcIndex: []uint64{0, 1, 2, 3, 4}, TgtIndex: []uint64{0, 1, 2, 3, 4}},
	}

	statsPath := filepath.Join(dir, "tile_stats.dat")
	tilesPath := filepath.Join(dir, "tiles.dat")
	metaPath := filepath.Join(dir, "meta.dat")

	require.NoError(t, WriteTileStats(statsPath, stats))
	require.NoError(t, WriteTileFile(tilesPath, metaPath, stats, blocks, indices))

	tf, err := Open(statsPath, tilesPath, metaPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tf.Close() })

	require.Equal(t, stats, tf.Stats())

	eb, err := tf.ReadEdgeBlock(0)
	require.NoError(t, err)
	require.Equal(t, blocks[0], eb)

	idx, err := tf.IndexFor(0)
	require.NoError(t, err)
	require.Equal(t, indices[0], idx)
}

func writeU32File(path string, values []uint32) error {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		buf[i*4] = byte(v)
		buf[i*4+1] = byte(v >> 8)
		buf[i*4+2] = byte(v >> 16)
		buf[i*4+3] = byte(v >> 24)
	}
	return os.WriteFile(path, buf, 0o644)
}
