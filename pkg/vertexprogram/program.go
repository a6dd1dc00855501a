// Package vertexprogram declares the user-supplied numeric-kernel contract
// spec.md §9 calls a "trait-style capability set": each algorithm declares
// its CapabilitySet and provides PullGather, ReduceVertex, ResetTarget,
// and Apply as direct Go function values — not an RPC boundary (see
// SPEC_FULL.md §B for why no protobuf/grpc stack backs this).
//
// V is fixed to float64 here: every named example algorithm (PageRank,
// SSSP, BFS-like reachability) is naturally expressed as a scalar per
// vertex, and spec.md treats V as an opaque user type the pipeline never
// inspects.
package vertexprogram

import (
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// Program is the capability-gated vertex program contract (spec.md §9).
type Program interface {
	// Capabilities reports which optional blocks/bitsets the pipeline must
	// attach to this algorithm's tiles.
	Capabilities() mosaic.CapabilitySet

	// ResetTarget returns the value a target accumulator is reset to before
	// a tile's edges are folded into it (0 for sums, +Inf for SSSP's min)
	// (spec.md §4.3 "reset_vertices_tile_processor").
	ResetTarget() float64

	// PullGather folds one edge's source value into the target
	// accumulator and returns the updated value. It may also report that
	// the source or target should be marked active-next.
	PullGather(edge EdgeContext) (newTgt float64, activateSrcNext, activateTgtNext bool)

	// ReduceVertex merges a tile's partial target accumulator into the
	// global next[] cell for vertex g (spec.md §4.7 "Target pass").
	ReduceVertex(current, partial float64, g uint64, deg mosaic.VertexDegree) float64

	// Apply computes the final next[v] at iteration end (spec.md §4.8).
	// current is current[v] (read-only all iteration); accumulated is
	// whatever ReduceVertex has already folded into next[v] from this
	// iteration's partial blocks. Apply returns the value to commit to
	// next[v], whether v should be active-next, and whether v "changed" —
	// the pipeline only threads `changed` through; it never interprets it
	// itself (SPEC_FULL.md §D.1).
	Apply(current, accumulated float64, v uint64, deg mosaic.VertexDegree, iteration int) (next float64, activeNext bool, changed bool)
}

// EdgeContext carries everything a PullGather hook needs for one edge,
// matching the callback signature in spec.md §4.3.
type EdgeContext struct {
	Src, Tgt         float64
	SrcID, TgtID     uint64
	SrcDegree        mosaic.VertexDegree
	TgtDegree        mosaic.VertexDegree
	HasDegrees       bool
	Weight           float32
	Weighted         bool
}
