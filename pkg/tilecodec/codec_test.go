package tilecodec

import (
	"reflect"
	"testing"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// TestRLERoundTrip matches spec.md §8 scenario 4: a tile with tgt RLE
// [(count=2,id=3),(count=3,id=7)] and src [10,11,20,21,22] must produce
// five edges {(10,3),(11,3),(20,7),(21,7),(22,7)} in order.
func TestRLERoundTrip(t *testing.T) {
	runs := []mosaic.RLERun{{Count: 2, ID: 3}, {Count: 3, ID: 7}}
	tgt := ExpandRLE(runs)
	want := []uint16{3, 3, 7, 7, 7}
	if !reflect.DeepEqual(tgt, want) {
		t.Fatalf("ExpandRLE = %v, want %v", tgt, want)
	}

	src := []uint16{10, 11, 20, 21, 22}
	type pair struct{ s, tg uint16 }
	var got []pair
	for i := range src {
		got = append(got, pair{src[i], tgt[i]})
	}
	wantPairs := []pair{{10, 3}, {11, 3}, {20, 7}, {21, 7}, {22, 7}}
	if !reflect.DeepEqual(got, wantPairs) {
		t.Fatalf("edges = %v, want %v", got, wantPairs)
	}

	if SumRunCounts(runs) != uint64(len(src)) {
		t.Fatalf("RLE consistency invariant violated: sum=%d edges=%d", SumRunCounts(runs), len(src))
	}
}

func TestZeroCountDecodesTo65536(t *testing.T) {
	runs := []mosaic.RLERun{{Count: 0, ID: 42}}
	if runs[0].DecodedCount() != mosaic.RLEZeroRunLength {
		t.Fatalf("expected count=0 to decode to %d, got %d", mosaic.RLEZeroRunLength, runs[0].DecodedCount())
	}
}

func TestCompactExpandRoundTrip(t *testing.T) {
	tgt := []uint16{1, 1, 1, 2, 2, 3, 3, 3, 3}
	runs := CompactRLE(tgt)
	back := ExpandRLE(runs)
	if !reflect.DeepEqual(back, tgt) {
		t.Fatalf("round trip mismatch: got %v want %v", back, tgt)
	}
}

func TestRLECursorAdvanceBySkipsWholeStripe(t *testing.T) {
	runs := []mosaic.RLERun{{Count: 16, ID: 5}, {Count: 16, ID: 6}}
	c := NewRLECursor(runs)
	if c.Tgt() != 5 {
		t.Fatalf("expected first tgt 5, got %d", c.Tgt())
	}
	c.AdvanceBy(16)
	if c.Tgt() != 6 {
		t.Fatalf("expected tgt 6 after skipping a 16-edge stripe, got %d", c.Tgt())
	}
}

func TestEncodeDecodeEdgeBlockNonRLE(t *testing.T) {
	eb := &mosaic.EdgeBlock{
		BlockID: 99,
		Src:     []uint16{1, 2, 3},
		Tgt:     []uint16{10, 20, 30},
		Weight:  []float32{0.5, 1.5, 2.5},
	}
	data := EncodeEdgeBlock(eb, false)
	got, err := DecodeEdgeBlock(data, 3, false, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BlockID != eb.BlockID || !reflect.DeepEqual(got.Src, eb.Src) || !reflect.DeepEqual(got.Tgt, eb.Tgt) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, eb)
	}
	for i := range eb.Weight {
		if got.Weight[i] != eb.Weight[i] {
			t.Fatalf("weight[%d] = %v, want %v", i, got.Weight[i], eb.Weight[i])
		}
	}
}

func TestEncodeDecodeEdgeBlockRLE(t *testing.T) {
	eb := &mosaic.EdgeBlock{
		BlockID: 1,
		Src:     []uint16{10, 11, 20, 21, 22},
		Tgt:     []uint16{3, 3, 7, 7, 7},
	}
	data := EncodeEdgeBlock(eb, true)
	got, err := DecodeEdgeBlock(data, 5, true, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got.Tgt, eb.Tgt) {
		t.Fatalf("RLE round trip mismatch: %v vs %v", got.Tgt, eb.Tgt)
	}
}

func TestDecodeEdgeBlockRejectsBadMagic(t *testing.T) {
	data := make([]byte, 16)
	_, err := DecodeEdgeBlock(data, 0, false, false)
	if err != mosaic.ErrTileCorruption {
		t.Fatalf("expected ErrTileCorruption, got %v", err)
	}
}

func TestEncodeDecodeEdgeBlockIndex(t *testing.T) {
	idx := &mosaic.EdgeBlockIndex{
		BlockID:  3,
		CountSrc: 2,
		CountTgt: 2,
		SrcIndex: []uint64{100, 200},
		TgtIndex: []uint64{300, 400},
	}
	data := EncodeEdgeBlockIndex(idx, false)
	got, err := DecodeEdgeBlockIndex(data, false)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, idx) {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, idx)
	}
}

func TestEncodeDecodeEdgeBlockIndexWithExtensionBits(t *testing.T) {
	idx := &mosaic.EdgeBlockIndex{
		BlockID:    3,
		CountSrc:   3,
		CountTgt:   1,
		SrcIndex:   []uint64{1, 2, 3},
		TgtIndex:   []uint64{4},
		SrcExtBits: []bool{true, false, true},
		TgtExtBits: []bool{false},
	}
	data := EncodeEdgeBlockIndex(idx, true)
	got, err := DecodeEdgeBlockIndex(data, true)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got.SrcExtBits, idx.SrcExtBits) || !reflect.DeepEqual(got.TgtExtBits, idx.TgtExtBits) {
		t.Fatalf("extension bits mismatch: %+v vs %+v", got, idx)
	}
}
