package tilecodec

import (
	"encoding/binary"
	"fmt"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// EncodeEdgeBlockIndex serializes an EdgeBlockIndex payload: block id,
// counts, then src_index[]/tgt_index[] as 64-bit global ids, followed by
// the optional extension bitsets used when ids need more than 32 bits
// (spec.md §3).
func EncodeEdgeBlockIndex(idx *mosaic.EdgeBlockIndex, use33BitExtension bool) []byte {
	buf := make([]byte, 0, 24+len(idx.SrcIndex)*8+len(idx.TgtIndex)*8)
	var tmp8 [8]byte
	var tmp4 [4]byte

	binary.LittleEndian.PutUint64(tmp8[:], idx.BlockID)
	buf = append(buf, tmp8[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], idx.CountSrc)
	buf = append(buf, tmp4[:]...)
	binary.LittleEndian.PutUint32(tmp4[:], idx.CountTgt)
	buf = append(buf, tmp4[:]...)

	for _, id := range idx.SrcIndex {
		binary.LittleEndian.PutUint64(tmp8[:], id)
		buf = append(buf, tmp8[:]...)
	}
	for _, id := range idx.TgtIndex {
		binary.LittleEndian.PutUint64(tmp8[:], id)
		buf = append(buf, tmp8[:]...)
	}

	if use33BitExtension {
		buf = append(buf, packBits(idx.SrcExtBits)...)
		buf = append(buf, packBits(idx.TgtExtBits)...)
	}
	return buf
}

// DecodeEdgeBlockIndex parses bytes produced by EncodeEdgeBlockIndex.
func DecodeEdgeBlockIndex(data []byte, use33BitExtension bool) (*mosaic.EdgeBlockIndex, error) {
	if len(data) < 16 {
		return nil, fmt.Errorf("index block too short: %w", mosaic.ErrTileCorruption)
	}
	idx := &mosaic.EdgeBlockIndex{
		BlockID:  binary.LittleEndian.Uint64(data[0:8]),
		CountSrc: binary.LittleEndian.Uint32(data[8:12]),
		CountTgt: binary.LittleEndian.Uint32(data[12:16]),
	}
	off := 16

	idx.SrcIndex = make([]uint64, idx.CountSrc)
	for i := range idx.SrcIndex {
		idx.SrcIndex[i] = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
	}
	idx.TgtIndex = make([]uint64, idx.CountTgt)
	for i := range idx.TgtIndex {
		idx.TgtIndex[i] = binary.LittleEndian.Uint64(data[off : off+8])
		off += 8
	}

	if use33BitExtension {
		srcBits, consumed := unpackBits(data[off:], int(idx.CountSrc))
		idx.SrcExtBits = srcBits
		off += consumed
		tgtBits, consumed2 := unpackBits(data[off:], int(idx.CountTgt))
		idx.TgtExtBits = tgtBits
		off += consumed2
	}
	return idx, nil
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func unpackBits(data []byte, n int) ([]bool, int) {
	nbytes := (n + 7) / 8
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = data[i/8]&(1<<uint(i%8)) != 0
	}
	return out, nbytes
}
