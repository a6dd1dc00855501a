package vertexprogram

import mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"

// fakeSumProgram is a hand-written test double standing in for a mockgen
// fixture: github.com/golang/mock is a codegen tool invoked via `mockgen`,
// and the toolchain is never run in this repository (SPEC_FULL.md §B), so
// capability-record fakes are authored directly instead.
type fakeSumProgram struct {
	caps mosaic.CapabilitySet
}

func (f fakeSumProgram) Capabilities() mosaic.CapabilitySet { return f.caps }
func (f fakeSumProgram) ResetTarget() float64                { return 0 }

func (f fakeSumProgram) PullGather(e EdgeContext) (float64, bool, bool) {
	return e.Tgt + e.Src, false, false
}

func (f fakeSumProgram) ReduceVertex(current, partial float64, _ uint64, _ mosaic.VertexDegree) float64 {
	return current + partial
}

func (f fakeSumProgram) Apply(_, accumulated float64, _ uint64, _ mosaic.VertexDegree, _ int) (float64, bool, bool) {
	return accumulated, accumulated != 0, accumulated != 0
}

var _ Program = fakeSumProgram{}
