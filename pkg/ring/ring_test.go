package ring

import (
	"context"
	"testing"
	"time"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

func TestPutGetRoundTrip(t *testing.T) {
	r := New(4096, 64)
	ctx := context.Background()

	h, err := r.Put(ctx, 32, Blocking)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	copy(h.Data, []byte("hello-ring-buffer"))
	r.ElmSetReady(h)

	got, err := r.Get(ctx, Blocking)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data[:17]) != "hello-ring-buffer" {
		t.Fatalf("payload mismatch: %q", got.Data[:17])
	}
	r.ElmSetDone(got)

	puts, gets, _ := r.Stats()
	if puts != 1 || gets != 1 {
		t.Fatalf("expected 1 put/get, got %d/%d", puts, gets)
	}
}

func TestGetBlocksUntilReady(t *testing.T) {
	r := New(4096, 64)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		h, err := r.Get(ctx, Blocking)
		if err != nil {
			t.Errorf("Get: %v", err)
		}
		r.ElmSetDone(h)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("Get returned before any element was ready")
	default:
	}

	h, err := r.Put(ctx, 8, Blocking)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	r.ElmSetReady(h)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Get never unblocked after ElmSetReady")
	}
}

func TestNonBlockingPutReturnsFullWhenExhausted(t *testing.T) {
	r := New(128, 32)
	ctx := context.Background()

	if _, err := r.Put(ctx, 32, NonBlocking); err != nil {
		t.Fatalf("first Put should fit: %v", err)
	}
	_, err := r.Put(ctx, 96, NonBlocking)
	if err != mosaic.ErrRingBufferFull {
		t.Fatalf("expected ErrRingBufferFull, got %v", err)
	}
}

func TestElmSetDoneReclaimsOnlyContiguousPrefix(t *testing.T) {
	r := New(4096, 64)
	ctx := context.Background()

	h1, _ := r.Put(ctx, 16, Blocking)
	h2, _ := r.Put(ctx, 16, Blocking)
	r.ElmSetReady(h1)
	r.ElmSetReady(h2)

	// Mark the second element done first: reclamation front must not
	// advance past the still-ready first element.
	g1, _ := r.Get(ctx, Blocking)
	g2, _ := r.Get(ctx, Blocking)
	r.ElmSetDone(g2)
	depthBefore := r.Depth()
	r.ElmSetDone(g1)
	depthAfter := r.Depth()
	if depthAfter >= depthBefore {
		t.Fatalf("expected depth to shrink once the prefix element is done: before=%d after=%d", depthBefore, depthAfter)
	}
}

func TestPutGetSurvivesWrapAround(t *testing.T) {
	// capacity=96, alignment=32, header=16: a 48-byte payload spans 64
	// bytes (AlignUp(16+48,32)). The first element fully reclaims before
	// the second is allocated at offset 64, whose 48-byte payload runs
	// from 64 to 112 — past the 96-byte backing array, forcing slice() to
	// hand out a disconnected copy that Put/ElmSetReady must write back.
	r := New(96, 32)
	ctx := context.Background()

	h1, err := r.Put(ctx, 48, Blocking)
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	copy(h1.Data, []byte("first-element-before-the-wrap-point"))
	r.ElmSetReady(h1)
	g1, err := r.Get(ctx, Blocking)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}
	r.ElmSetDone(g1)

	h2, err := r.Put(ctx, 48, Blocking)
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	payload := []byte("second-element-straddles-the-ring-wrap")
	copy(h2.Data, payload)
	r.ElmSetReady(h2)

	g2, err := r.Get(ctx, Blocking)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if string(g2.Data[:len(payload)]) != string(payload) {
		t.Fatalf("wrapped payload lost: got %q, want %q", g2.Data[:len(payload)], payload)
	}
	r.ElmSetDone(g2)
}

func TestCloseWakesBlockedCallers(t *testing.T) {
	r := New(4096, 64)
	ctx := context.Background()
	errCh := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, Blocking)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	r.Close()
	select {
	case err := <-errCh:
		if err != mosaic.ErrRingBufferClosed {
			t.Fatalf("expected ErrRingBufferClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Close did not wake blocked Get")
	}
}
