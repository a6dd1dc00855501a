package bitset

import "testing"

func TestSetGet(t *testing.T) {
	b := New(130)
	if b.Get(5) {
		t.Fatalf("expected unset")
	}
	if ok := b.Set(5); !ok {
		t.Fatalf("expected first Set to transition 0->1")
	}
	if !b.Get(5) {
		t.Fatalf("expected set")
	}
	if ok := b.Set(5); ok {
		t.Fatalf("expected second Set to report no transition")
	}
	if b.Get(129) {
		t.Fatalf("boundary bit should be unset")
	}
	if ok := b.Set(129); !ok {
		t.Fatalf("boundary bit should transition")
	}
}

func TestAnyAndClear(t *testing.T) {
	b := New(64)
	if b.Any() {
		t.Fatalf("fresh bitset should be empty")
	}
	b.Set(40)
	if !b.Any() {
		t.Fatalf("expected Any after Set")
	}
	b.Clear()
	if b.Any() {
		t.Fatalf("expected empty after Clear")
	}
}

func TestBytesRoundTrip(t *testing.T) {
	b := New(20)
	b.Set(0)
	b.Set(9)
	b.Set(19)
	data := b.Bytes()
	got := FromBytes(data, 20)
	for i := 0; i < 20; i++ {
		if b.Get(i) != got.Get(i) {
			t.Fatalf("bit %d mismatch after round trip", i)
		}
	}
}

func TestOr(t *testing.T) {
	a := New(64)
	b := New(64)
	a.Set(1)
	b.Set(2)
	a.Or(b)
	if !a.Get(1) || !a.Get(2) {
		t.Fatalf("expected both bits set after Or")
	}
}

func TestSwap(t *testing.T) {
	a := New(8)
	b := New(8)
	a.Set(0)
	Swap(a, b)
	if a.Get(0) {
		t.Fatalf("expected a to be b's old (empty) storage")
	}
	if !b.Get(0) {
		t.Fatalf("expected b to be a's old storage")
	}
}
