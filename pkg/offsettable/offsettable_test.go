package offsettable

import "testing"

func TestSlotLifecycle(t *testing.T) {
	tbl := NewTable(2)
	slot := tbl.Slot(0)

	if !slot.TryAcquire() {
		t.Fatalf("expected first TryAcquire to succeed")
	}
	if slot.TryAcquire() {
		t.Fatalf("expected second TryAcquire to fail while active")
	}

	released := false
	bundle := NewBundle([]byte("payload"), 1, func() { released = true })
	slot.Publish(7, bundle, 1, 1)
	if !slot.Ready() {
		t.Fatalf("expected slot to be Ready after Publish")
	}
	if slot.BlockIDOf() != 7 {
		t.Fatalf("expected block id 7, got %d", slot.BlockIDOf())
	}

	slot.Release(ProcessConsumer)
	if released {
		t.Fatalf("bundle should not release until both refcount classes drain")
	}
	slot.Release(FetchConsumer)
	if !released {
		t.Fatalf("expected bundle release once both refcount classes drained")
	}
	if !slot.TryAcquire() {
		t.Fatalf("expected slot to be acquirable again after full release")
	}
}

func TestBundleRefcountSoundness(t *testing.T) {
	released := 0
	b := NewBundle(nil, 3, func() { released++ })
	b.Release()
	b.Release()
	if released != 0 {
		t.Fatalf("bundle released before refcount reached zero")
	}
	b.Release()
	if released != 1 {
		t.Fatalf("expected exactly one release call, got %d", released)
	}
}
