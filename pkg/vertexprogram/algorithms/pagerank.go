package algorithms

import (
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// PageRank implements damped PageRank per spec.md §8 scenario 2: each
// source contributes current[src]/out_degree(src) to every out-edge's
// target; apply folds in the damping factor and the uniform restart mass.
type PageRank struct {
	Damping     float64
	VertexCount uint64
}

func (PageRank) Capabilities() mosaic.CapabilitySet {
	return mosaic.CapabilitySet{
		NeedDegreesSourceBlock: true,
	}
}

func (PageRank) ResetTarget() float64 { return 0 }

// PullGather adds the source's per-out-edge rank share to the target
// accumulator. A zero out-degree (sink) contributes nothing and is
// guarded against division by zero.
func (PageRank) PullGather(e vertexprogram.EdgeContext) (float64, bool, bool) {
	if e.SrcDegree.OutDegree == 0 {
		return e.Tgt, false, false
	}
	return e.Tgt + e.Src/float64(e.SrcDegree.OutDegree), false, false
}

// ReduceVertex sums partial contributions into next[g] — PageRank's
// reduction is a plain commutative-associative add.
func (PageRank) ReduceVertex(current, partial float64, _ uint64, _ mosaic.VertexDegree) float64 {
	return current + partial
}

// Apply applies the damping factor and uniform restart mass:
// next[v] = (1-d)/N + d * accumulated. PageRank never converges to a fixed
// bitset of active vertices by itself, so every vertex stays active until
// max_iterations is reached — the pipeline's iteration cap governs
// termination rather than a convergence bitset (spec.md §8 scenario 2
// tests conservation of total rank, not early shutdown).
func (pr PageRank) Apply(_, accumulated float64, _ uint64, _ mosaic.VertexDegree, _ int) (float64, bool, bool) {
	restart := (1 - pr.Damping) / float64(pr.VertexCount)
	next := restart + pr.Damping*accumulated
	return next, true, true
}
