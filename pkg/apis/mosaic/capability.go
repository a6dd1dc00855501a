package mosaic

// CapabilitySet replaces the original's template parameters over APP and V
// (spec.md §9 "Templates over APP and V → trait-style capability set").
// The pipeline reads these flags to decide block sizes and which
// bitsets/degree arrays to attach to a tile, rather than specializing code
// per algorithm.
type CapabilitySet struct {
	NeedActiveSourceInput bool
	NeedActiveSourceBlock bool
	NeedActiveTargetBlock bool
	NeedDegreesSourceBlock bool
	NeedDegreesTargetBlock bool
	// UsesChanged documents whether this algorithm's apply hook treats the
	// `changed` bitset as a convergence signal. The pipeline only exposes
	// the bitset; it never interprets it itself (spec.md §9 open question,
	// SPEC_FULL.md §D.1).
	UsesChanged bool
	// IsWeighted selects pullGatherWeighted over pullGather and requires a
	// weight[] array on the edge block.
	IsWeighted bool
}

// BlockSizes is the Go equivalent of vertex_edge_tiles_block_sizes_t /
// _counts_t (original datatypes.h, SPEC_FULL.md §C.1): the exact byte
// sizing needed before allocating a tile's ring slab, computed once from
// tile-local counts and the algorithm's capability set instead of being
// implicit in an allocation call.
type BlockSizes struct {
	CountActiveVertexSrc uint32
	CountActiveVertexTgt uint32
	SizeActiveVertexSrc  uint64
	SizeActiveVertexTgt  uint64
	SizeDegreeSrc        uint64
	SizeDegreeTgt        uint64
	SizeSourceVertex     uint64
}

// SizeFor computes the BlockSizes for a tile with the given local vertex
// counts and per-vertex payload size (sizeof(V) in the original).
func (c CapabilitySet) SizeFor(countSrc, countTgt uint32, vertexSize uint64) BlockSizes {
	var b BlockSizes
	if c.NeedActiveSourceBlock {
		b.CountActiveVertexSrc = countSrc
		b.SizeActiveVertexSrc = bitsetBytes(countSrc)
	}
	if c.NeedActiveTargetBlock {
		b.CountActiveVertexTgt = countTgt
		b.SizeActiveVertexTgt = bitsetBytes(countTgt)
	}
	if c.NeedDegreesSourceBlock {
		b.SizeDegreeSrc = uint64(countSrc) * 8 // vertex_degree_t is two uint32s
	}
	if c.NeedDegreesTargetBlock {
		b.SizeDegreeTgt = uint64(countTgt) * 8
	}
	b.SizeSourceVertex = uint64(countSrc) * vertexSize
	return b
}

func bitsetBytes(nbits uint32) uint64 {
	return uint64((nbits + 7) / 8)
}
