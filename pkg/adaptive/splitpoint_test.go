package adaptive

import (
	"testing"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

func TestNewTrackerStartsAtInitBreakPoint(t *testing.T) {
	tr := NewSplitPointTracker(8)
	if tr.Current() != mosaic.InitTileBreakPoint {
		t.Fatalf("expected initial break point %d, got %d", mosaic.InitTileBreakPoint, tr.Current())
	}
}

func TestObserveClampsToConfiguredRange(t *testing.T) {
	tr := NewSplitPointTracker(8)
	// An absurdly high rate should clamp to MaxTileBreakPoint.
	tr.Observe(Sample{Edges: 1_000_000_000, Nanos: 1})
	if got := tr.Current(); got != mosaic.MaxTileBreakPoint {
		t.Fatalf("expected clamp to max %d, got %d", mosaic.MaxTileBreakPoint, got)
	}
	// An absurdly low rate should clamp to MinTileBreakPoint.
	tr2 := NewSplitPointTracker(8)
	tr2.Observe(Sample{Edges: 1, Nanos: 1_000_000_000})
	if got := tr2.Current(); got != mosaic.MinTileBreakPoint {
		t.Fatalf("expected clamp to min %d, got %d", mosaic.MinTileBreakPoint, got)
	}
}

func TestPartitionCountRespectsBounds(t *testing.T) {
	tr := NewSplitPointTracker(8)
	p := tr.PartitionCount(10, 1, 8)
	if p < 1 || p > 8 {
		t.Fatalf("partition count %d out of [1,8]", p)
	}
	big := tr.PartitionCount(1_000_000_000, 1, 8)
	if big != 8 {
		t.Fatalf("expected clamp to max partitions 8, got %d", big)
	}
}

func TestShouldSampleIsApproximatelyOnePercent(t *testing.T) {
	count := 0
	const total = 10000
	for i := uint64(0); i < total; i++ {
		if ShouldSample(i) {
			count++
		}
	}
	if count != total/100 {
		t.Fatalf("expected exactly %d sampled tiles out of %d, got %d", total/100, total, count)
	}
}
