package tilecodec

import (
	"encoding/binary"
	"fmt"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// EncodeEdgeBlock serializes an EdgeBlock to its on-disk layout: a
// MagicIdentifier header, then src[], tgt[] (RLE-encoded when useRLE is
// set), then weight[] if present. All integers are little-endian
// (spec.md §6).
func EncodeEdgeBlock(eb *mosaic.EdgeBlock, useRLE bool) []byte {
	buf := make([]byte, 0, 8+8+len(eb.Src)*2+len(eb.Tgt)*2+len(eb.Weight)*4)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], mosaic.MagicIdentifier)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint64(tmp[:], eb.BlockID)
	buf = append(buf, tmp[:]...)

	for _, v := range eb.Src {
		buf = appendU16(buf, v)
	}

	if useRLE {
		runs := CompactRLE(eb.Tgt)
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(runs)))
		buf = append(buf, lenBuf[:]...)
		for _, r := range runs {
			buf = appendU16(buf, r.Count)
			buf = appendU16(buf, r.ID)
		}
	} else {
		for _, v := range eb.Tgt {
			buf = appendU16(buf, v)
		}
	}

	for _, w := range eb.Weight {
		var wb [4]byte
		binary.LittleEndian.PutUint32(wb[:], floatBits(w))
		buf = append(buf, wb[:]...)
	}
	return buf
}

// DecodeEdgeBlock parses bytes produced by EncodeEdgeBlock. countEdges and
// weighted come from the tile's TileStats / ScenarioStats, since the
// on-disk payload itself does not self-describe those (spec.md §3).
func DecodeEdgeBlock(data []byte, countEdges int, useRLE bool, weighted bool) (*mosaic.EdgeBlock, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("edge block too short: %w", mosaic.ErrTileCorruption)
	}
	magic := binary.LittleEndian.Uint64(data[0:8])
	if magic != mosaic.MagicIdentifier {
		return nil, mosaic.ErrTileCorruption
	}
	blockID := binary.LittleEndian.Uint64(data[8:16])
	off := 16

	src := make([]uint16, countEdges)
	for i := range src {
		src[i] = binary.LittleEndian.Uint16(data[off : off+2])
		off += 2
	}

	var tgt []uint16
	if useRLE {
		if off+4 > len(data) {
			return nil, fmt.Errorf("truncated RLE header: %w", mosaic.ErrTileCorruption)
		}
		nRuns := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		runs := make([]mosaic.RLERun, nRuns)
		for i := 0; i < nRuns; i++ {
			runs[i].Count = binary.LittleEndian.Uint16(data[off : off+2])
			off += 2
			runs[i].ID = binary.LittleEndian.Uint16(data[off : off+2])
			off += 2
		}
		if int(SumRunCounts(runs)) != countEdges {
			return nil, fmt.Errorf("RLE run counts sum to %d, want %d: %w", SumRunCounts(runs), countEdges, mosaic.ErrTileCorruption)
		}
		tgt = ExpandRLE(runs)
	} else {
		tgt = make([]uint16, countEdges)
		for i := range tgt {
			tgt[i] = binary.LittleEndian.Uint16(data[off : off+2])
			off += 2
		}
	}

	var weight []float32
	if weighted {
		weight = make([]float32, countEdges)
		for i := range weight {
			bits := binary.LittleEndian.Uint32(data[off : off+4])
			weight[i] = floatFromBits(bits)
			off += 4
		}
	}

	return &mosaic.EdgeBlock{BlockID: blockID, Src: src, Tgt: tgt, Weight: weight}, nil
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}
