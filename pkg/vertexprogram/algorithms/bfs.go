// Package algorithms provides reference vertex programs for the three
// kernels spec.md §1 names: PageRank, SSSP, and BFS-like reachability.
// They are ordinary Go values implementing vertexprogram.Program — the
// capability-gated callback contract the pipeline invokes directly.
package algorithms

import (
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// Reachability implements the BFS-like apply kernel from spec.md §8
// scenario 1: current[v] is 1.0 once v is reachable from the seed set,
// 0.0 otherwise. A vertex becomes active-next exactly when the pull-gather
// pass marks a not-yet-reached target reachable this iteration.
type Reachability struct{}

func (Reachability) Capabilities() mosaic.CapabilitySet {
	return mosaic.CapabilitySet{
		NeedActiveSourceInput: true,
		NeedActiveSourceBlock: true,
		NeedActiveTargetBlock: true,
	}
}

func (Reachability) ResetTarget() float64 { return 0 }

// PullGather ORs the source's reached flag into the target accumulator:
// if src is reachable and tgt isn't yet, tgt becomes reachable and its
// active-next bit is set so the Global Reducer activates tgt's tiles for
// the next iteration (spec.md §4.3, §4.7 "Source pass").
func (Reachability) PullGather(e vertexprogram.EdgeContext) (float64, bool, bool) {
	if e.Src > 0 && e.Tgt == 0 {
		return 1, false, true
	}
	return e.Tgt, false, false
}

// ReduceVertex takes the max (logical OR) of the current next[] value and
// the partial contribution — reachability is monotonic so this reduction
// is commutative and associative regardless of partial arrival order.
func (Reachability) ReduceVertex(current, partial float64, _ uint64, _ mosaic.VertexDegree) float64 {
	if partial > current {
		return partial
	}
	return current
}

// Apply commits the reduced value into next[] and reports active-next
// precisely when this iteration newly reached v (current[v] was 0 and
// accumulated is now reachable).
func (Reachability) Apply(current, accumulated float64, _ uint64, _ mosaic.VertexDegree, _ int) (float64, bool, bool) {
	next := current
	if accumulated > 0 {
		next = 1
	}
	newlyReached := next > 0 && current == 0
	return next, newlyReached, newlyReached
}
