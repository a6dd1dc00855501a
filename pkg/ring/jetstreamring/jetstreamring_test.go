package jetstreamring

import (
	"context"
	"testing"
	"time"
)

func TestMasterShadowRoundTrip(t *testing.T) {
	srv, err := StartEmbedded(t.TempDir())
	if err != nil {
		t.Fatalf("starting embedded server: %v", err)
	}
	defer srv.Shutdown()

	master, err := NewMaster(srv.URL(), "MOSAIC_TILES", "mosaic.tiles")
	if err != nil {
		t.Fatalf("NewMaster: %v", err)
	}
	defer master.Close()

	shadow, err := NewShadow(srv.URL(), "MOSAIC_TILES", "mosaic.tiles", "mosaic-shadow")
	if err != nil {
		t.Fatalf("NewShadow: %v", err)
	}
	defer shadow.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := master.Push(ctx, []byte("edge-block-42")); err != nil {
		t.Fatalf("Push: %v", err)
	}

	got, err := shadow.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if string(got) != "edge-block-42" {
		t.Fatalf("payload mismatch: %q", got)
	}
}
