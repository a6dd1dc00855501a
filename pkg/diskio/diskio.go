// Package diskio reads the on-disk file set spec.md §6 describes: global
// scenario files, per-engine tile_stats/tiles/meta files. The offline
// compiler that produces these files is out of scope (spec.md §1a), so the
// exact tiles.dat/meta.dat framing below is this engine's own choice for a
// record it can read back deterministically — each record is length-
// prefixed, rather than trying to reconstruct the original's TILE_READ_ALIGN
// padded layout byte-for-byte. tilecodec still supplies the payload codec
// (spec.md §3, §6 "Binary constants").
package diskio

import (
	"encoding/binary"
	"fmt"
	"os"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/tilecodec"
)

// ReadScenarioStats loads path_to_globals/stat.dat (spec.md §6).
func ReadScenarioStats(path string) (mosaic.ScenarioStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mosaic.ScenarioStats{}, fmt.Errorf("diskio: reading scenario stats: %w: %v", mosaic.ErrDiskRead, err)
	}
	if len(data) < 20 {
		return mosaic.ScenarioStats{}, fmt.Errorf("diskio: scenario stats truncated: %w", mosaic.ErrDiskRead)
	}
	return mosaic.ScenarioStats{
		CountVertices:       binary.LittleEndian.Uint64(data[0:8]),
		CountTiles:          binary.LittleEndian.Uint64(data[8:16]),
		IsIndex32Bits:       data[16] != 0,
		IsWeightedGraph:     data[17] != 0,
		Index33BitExtension: data[18] != 0,
		TileOrder:           mosaic.TileOrder(data[19]),
	}, nil
}

// WriteScenarioStats is the inverse of ReadScenarioStats, used by tests and
// by whatever offline step seeds a scratch scenario directory.
func WriteScenarioStats(path string, s mosaic.ScenarioStats) error {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint64(buf[0:8], s.CountVertices)
	binary.LittleEndian.PutUint64(buf[8:16], s.CountTiles)
	if s.IsIndex32Bits {
		buf[16] = 1
	}
	if s.IsWeightedGraph {
		buf[17] = 1
	}
	if s.Index33BitExtension {
		buf[18] = 1
	}
	buf[19] = byte(s.TileOrder)
	return os.WriteFile(path, buf, 0o644)
}

// ReadVertexDegrees loads path_to_globals/vertex_deg.dat (spec.md §6).
func ReadVertexDegrees(path string, n int) ([]mosaic.VertexDegree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("diskio: reading vertex degrees: %w: %v", mosaic.ErrDiskRead, err)
	}
	if len(data) != n*8 {
		return nil, fmt.Errorf("diskio: vertex_deg.dat has %d bytes, want %d: %w", len(data), n*8, mosaic.ErrDiskRead)
	}
	out := make([]mosaic.VertexDegree, n)
	for i := range out {
		off := i * 8
		out[i] = mosaic.VertexDegree{
			InDegree:  binary.LittleEndian.Uint32(data[off : off+4]),
			OutDegree: binary.LittleEndian.Uint32(data[off+4 : off+8]),
		}
	}
	return out, nil
}

// WriteVertexDegrees is the inverse of ReadVertexDegrees.
func WriteVertexDegrees(path string, degs []mosaic.VertexDegree) error {
	buf := make([]byte, len(degs)*8)
	for i, d := range degs {
		off := i * 8
		binary.LittleEndian.PutUint32(buf[off:off+4], d.InDegree)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], d.OutDegree)
	}
	return os.WriteFile(path, buf, 0o644)
}

// ReadVertexToTileXRef loads vertex_to_tile_count.dat +
// vertex_to_tile_index.dat into the flattened offset/index form
// mosaic.VertexToTileXRef already uses in memory (spec.md §6).
func ReadVertexToTileXRef(countPath, indexPath string, n int) (*mosaic.VertexToTileXRef, error) {
	countData, err := os.ReadFile(countPath)
	if err != nil {
		return nil, fmt.Errorf("diskio: reading vertex_to_tile_count: %w: %v", mosaic.ErrDiskRead, err)
	}
	if len(countData) != n*4 {
		return nil, fmt.Errorf("diskio: vertex_to_tile_count.dat has %d bytes, want %d: %w", len(countData), n*4, mosaic.ErrDiskRead)
	}
	offset := make([]uint32, n+1)
	for v := 0; v < n; v++ {
		offset[v+1] = offset[v] + binary.LittleEndian.Uint32(countData[v*4:v*4+4])
	}

	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, fmt.Errorf("diskio: reading vertex_to_tile_index: %w: %v", mosaic.ErrDiskRead, err)
	}
	sum := int(offset[n])
	if len(indexData) != sum*4 {
		return nil, fmt.Errorf("diskio: vertex_to_tile_index.dat has %d bytes, want %d: %w", len(indexData), sum*4, mosaic.ErrDiskRead)
	}
	index := make([]uint32, sum)
	for i := range index {
		index[i] = binary.LittleEndian.Uint32(indexData[i*4 : i*4+4])
	}
	return &mosaic.VertexToTileXRef{Offset: offset, Index: index}, nil
}

// ReadTileStats loads one engine's paths_to_meta[e]/tile_stats.dat
// (spec.md §6), a flat array of fixed-size records ordered by local tile id.
func ReadTileStats(path string) ([]mosaic.TileStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("diskio: reading tile stats: %w: %v", mosaic.ErrDiskRead, err)
	}
	const recSize = 24
	if len(data)%recSize != 0 {
		return nil, fmt.Errorf("diskio: tile_stats.dat not a multiple of %d bytes: %w", recSize, mosaic.ErrDiskRead)
	}
	n := len(data) / recSize
	out := make([]mosaic.TileStats, n)
	for i := range out {
		off := i * recSize
		out[i] = mosaic.TileStats{
			BlockID:        binary.LittleEndian.Uint64(data[off : off+8]),
			CountVertexSrc: binary.LittleEndian.Uint32(data[off+8 : off+12]),
			CountVertexTgt: binary.LittleEndian.Uint32(data[off+12 : off+16]),
			CountEdges:     binary.LittleEndian.Uint32(data[off+16 : off+20]),
			UseRLE:         data[off+20] != 0,
		}
	}
	return out, nil
}

// WriteTileStats is the inverse of ReadTileStats.
func WriteTileStats(path string, stats []mosaic.TileStats) error {
	const recSize = 24
	buf := make([]byte, len(stats)*recSize)
	for i, s := range stats {
		off := i * recSize
		binary.LittleEndian.PutUint64(buf[off:off+8], s.BlockID)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], s.CountVertexSrc)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], s.CountVertexTgt)
		binary.LittleEndian.PutUint32(buf[off+16:off+20], s.CountEdges)
		if s.UseRLE {
			buf[off+20] = 1
		}
	}
	return os.WriteFile(path, buf, 0o644)
}

// TileFile is a TileSource/IndexSource pair backed by one engine's
// tile_stats.dat/tiles.dat/meta.dat (spec.md §4.2/§6). tiles.dat and
// meta.dat hold one length-prefixed record per tile, in tile_stats order;
// Open builds an in-memory offset index once so ReadEdgeBlock/IndexFor can
// seek directly instead of scanning.
type TileFile struct {
	stats    []mosaic.TileStats
	weighted bool

	tiles    *os.File
	tileOffs []int64

	meta     *os.File
	metaOffs []int64
}

// Open loads statsPath eagerly and builds seek tables for tilesPath and
// metaPath by scanning their length prefixes once.
func Open(statsPath, tilesPath, metaPath string, weighted bool) (*TileFile, error) {
	stats, err := ReadTileStats(statsPath)
	if err != nil {
		return nil, err
	}

	tiles, err := os.Open(tilesPath)
	if err != nil {
		return nil, fmt.Errorf("diskio: opening tiles file: %w: %v", mosaic.ErrDiskRead, err)
	}
	tileOffs, err := scanLengthPrefixed(tiles)
	if err != nil {
		tiles.Close()
		return nil, err
	}

	meta, err := os.Open(metaPath)
	if err != nil {
		tiles.Close()
		return nil, fmt.Errorf("diskio: opening meta file: %w: %v", mosaic.ErrDiskRead, err)
	}
	metaOffs, err := scanLengthPrefixed(meta)
	if err != nil {
		tiles.Close()
		meta.Close()
		return nil, err
	}

	return &TileFile{stats: stats, weighted: weighted, tiles: tiles, tileOffs: tileOffs, meta: meta, metaOffs: metaOffs}, nil
}

// scanLengthPrefixed walks a stream of (u32 length, payload) records and
// returns the file offset of each record's payload.
func scanLengthPrefixed(f *os.File) ([]int64, error) {
	var offs []int64
	var lenBuf [4]byte
	var pos int64
	for {
		n, err := f.ReadAt(lenBuf[:], pos)
		if n == 0 {
			break
		}
		if err != nil && n < 4 {
			return nil, fmt.Errorf("diskio: truncated record length: %w", mosaic.ErrDiskRead)
		}
		recLen := binary.LittleEndian.Uint32(lenBuf[:])
		offs = append(offs, pos+4)
		pos += 4 + int64(recLen)
	}
	return offs, nil
}

func readLengthPrefixed(f *os.File, payloadOff int64) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := f.ReadAt(lenBuf[:], payloadOff-4); err != nil {
		return nil, fmt.Errorf("diskio: reading record length: %w: %v", mosaic.ErrDiskRead, err)
	}
	recLen := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, recLen)
	if _, err := f.ReadAt(buf, payloadOff); err != nil {
		return nil, fmt.Errorf("diskio: reading record payload: %w: %v", mosaic.ErrDiskRead, err)
	}
	return buf, nil
}

func appendLengthPrefixed(buf, payload []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, payload...)
}

// Stats implements edgeengine.TileSource.
func (f *TileFile) Stats() []mosaic.TileStats { return f.stats }

// ReadEdgeBlock implements edgeengine.TileSource.
func (f *TileFile) ReadEdgeBlock(t uint64) (*mosaic.EdgeBlock, error) {
	if int(t) >= len(f.tileOffs) {
		return nil, fmt.Errorf("diskio: tile %d out of range: %w", t, mosaic.ErrDiskRead)
	}
	data, err := readLengthPrefixed(f.tiles, f.tileOffs[t])
	if err != nil {
		return nil, err
	}
	st := f.stats[t]
	return tilecodec.DecodeEdgeBlock(data, int(st.CountEdges), st.UseRLE, f.weighted)
}

// IndexFor implements edgeengine.IndexSource.
func (f *TileFile) IndexFor(t uint64) (*mosaic.EdgeBlockIndex, error) {
	if int(t) >= len(f.metaOffs) {
		return nil, fmt.Errorf("diskio: tile %d out of range: %w", t, mosaic.ErrDiskRead)
	}
	data, err := readLengthPrefixed(f.meta, f.metaOffs[t])
	if err != nil {
		return nil, err
	}
	return decodeEdgeBlockIndex(data)
}

// Close releases the underlying file descriptors.
func (f *TileFile) Close() error {
	err1 := f.tiles.Close()
	err2 := f.meta.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// WriteTileFile writes tiles.dat and meta.dat for one engine from decoded
// edge blocks and indices, in tile_stats order — the inverse of Open, used
// by tests and any offline seeding step this repo provides for itself.
func WriteTileFile(tilesPath, metaPath string, stats []mosaic.TileStats, blocks []*mosaic.EdgeBlock, indices []*mosaic.EdgeBlockIndex) error {
	var tilesBuf, metaBuf []byte
	for i, st := range stats {
		tilesBuf = appendLengthPrefixed(tilesBuf, tilecodec.EncodeEdgeBlock(blocks[i], st.UseRLE))
		metaBuf = appendLengthPrefixed(metaBuf, encodeEdgeBlockIndex(indices[i]))
	}
	if err := os.WriteFile(tilesPath, tilesBuf, 0o644); err != nil {
		return fmt.Errorf("diskio: writing tiles file: %w", err)
	}
	if err := os.WriteFile(metaPath, metaBuf, 0o644); err != nil {
		return fmt.Errorf("diskio: writing meta file: %w", err)
	}
	return nil
}

// encodeEdgeBlockIndex/decodeEdgeBlockIndex are this engine's own meta.dat
// payload codec: BlockID, CountSrc, CountTgt, then SrcIndex[CountSrc] and
// TgtIndex[CountTgt] as u64 (spec.md §3 "edge_block_index").
func encodeEdgeBlockIndex(idx *mosaic.EdgeBlockIndex) []byte {
	buf := make([]byte, 0, 16+len(idx.SrcIndex)*8+len(idx.TgtIndex)*8)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], idx.BlockID)
	buf = append(buf, tmp[:]...)
	var tmp4 [4]byte
	binary.LittleEndian.PutUint32(tmp4[:], idx.CountSrc)
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], idx.CountTgt)
	buf = append(buf, tmp4[:]...)
	for _, v := range idx.SrcIndex {
		binary.LittleEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	for _, v := range idx.TgtIndex {
		binary.LittleEndian.PutUint64(tmp[:], v)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

func decodeEdgeBlockIndex(data []byte) (*mosaic.EdgeBlockIndex, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("diskio: edge_block_index truncated: %w", mosaic.ErrDiskRead)
	}
	blockID := binary.LittleEndian.Uint64(data[0:8])
	countSrc := binary.LittleEndian.Uint32(data[8:12])
	countTgt := binary.LittleEndian.Uint32(data[12:16])
	off := 16

	srcIndex := make([]uint64, countSrc)
	for i := range srcIndex {
		if off+8 > len(data) {
			return nil, fmt.Errorf("diskio: edge_block_index src_index truncated: %w", mosaic.ErrDiskRead)
		}
		srcIndex[i] = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
	}
	tgtIndex := make([]uint64, countTgt)
	for i := range tgtIndex {
		if off+8 > len(data) {
			return nil, fmt.Errorf("diskio: edge_block_index tgt_index truncated: %w", mosaic.ErrDiskRead)
		}
		tgtIndex[i] = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
	}
	return &mosaic.EdgeBlockIndex{BlockID: blockID, CountSrc: countSrc, CountTgt: countTgt, SrcIndex: srcIndex, TgtIndex: tgtIndex}, nil
}
