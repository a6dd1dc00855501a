package algorithms

import (
	"math"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// Inf represents an unreached vertex's distance.
const Inf = math.MaxFloat64

// SSSP implements single-source shortest paths over weighted edges: each
// source relaxes its neighbors with src_distance + edge_weight, and the
// Global Reducer keeps the minimum across partial contributions.
type SSSP struct{}

func (SSSP) Capabilities() mosaic.CapabilitySet {
	return mosaic.CapabilitySet{
		NeedActiveSourceInput: true,
		NeedActiveSourceBlock: true,
		NeedActiveTargetBlock: true,
		IsWeighted:            true,
	}
}

func (SSSP) ResetTarget() float64 { return Inf }

// PullGather relaxes tgt via src + weight, marking tgt active-next when
// it strictly improves (spec.md §4.3 "the user updates tgt in place and
// optionally sets active-next bits").
func (SSSP) PullGather(e vertexprogram.EdgeContext) (float64, bool, bool) {
	if e.Src == Inf {
		return e.Tgt, false, false
	}
	candidate := e.Src + float64(e.Weight)
	if candidate < e.Tgt {
		return candidate, false, true
	}
	return e.Tgt, false, false
}

// ReduceVertex keeps the minimum distance — commutative, associative, and
// idempotent regardless of partial-block arrival order.
func (SSSP) ReduceVertex(current, partial float64, _ uint64, _ mosaic.VertexDegree) float64 {
	if partial < current {
		return partial
	}
	return current
}

// Apply commits the reduced minimum and reports active-next/changed when
// this iteration improved v's distance.
func (SSSP) Apply(current, accumulated float64, _ uint64, _ mosaic.VertexDegree, _ int) (float64, bool, bool) {
	next := current
	if accumulated < current {
		next = accumulated
	}
	improved := next < current
	return next, improved, improved
}
