package edgeengine

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
	"github.com/sslab-gatech/mosaic-engine/pkg/offsettable"
	"github.com/sslab-gatech/mosaic-engine/pkg/ring"
)

// Counter is the shared batch-index draw every Tile Reader thread pulls
// from (spec.md §4.2.1); roundCounter is the concrete implementation each
// engine round constructs fresh.
type Counter interface {
	Next() uint64
}

// TileReader converts the on-disk edge file into ready-for-consumption
// edge blocks, publishing each tile onto the reader-to-processor ring
// (spec.md §4.2).
type TileReader struct {
	EngineID int
	Source   TileSource
	Index    IndexSource
	Out      *ring.Ring
	Table    *offsettable.Table
	Counter  Counter

	UseSelectiveScheduling bool
}

// ReadRound publishes every tile named in `order`, skipping tiles whose bit
// is unset in active (selective-scheduling mode, spec.md §4.2 step 3). It
// draws from Counter only to record which of this round's tiles a given
// reader thread claims when multiple reader threads share one TileReader's
// Out ring — callers running several TileReader goroutines over the same
// Counter get disjoint, order-independent assignment.
func (tr *TileReader) ReadRound(ctx context.Context, order []uint64, active *bitset.Bitset) error {
	for {
		i := tr.Counter.Next()
		if i >= uint64(len(order)) {
			return nil
		}
		tileID := order[i]
		if err := tr.readOne(ctx, tileID, active); err != nil {
			return err
		}
	}
}

func (tr *TileReader) readOne(ctx context.Context, tileID uint64, active *bitset.Bitset) error {
	slot := tr.Table.Slot(tileID)
	for !slot.TryAcquire() {
		runtime.Gosched() // bounded yield-spin per spec.md §4.2.5
	}

	skip := tr.UseSelectiveScheduling && active != nil && tileID < uint64(active.Len()) && !active.Get(int(tileID))
	job := tileJob{TileID: tileID, Dummy: skip}

	stats := tr.Source.Stats()
	if int(tileID) >= len(stats) {
		return fmt.Errorf("%w: tile %d out of range", errTileRange, tileID)
	}
	job.Stats = stats[tileID]

	if !skip {
		idx, err := tr.Index.IndexFor(tileID)
		if err != nil {
			return fmt.Errorf("edgeengine: reading index for tile %d: %w", tileID, err)
		}
		job.Index = idx

		eb, err := tr.Source.ReadEdgeBlock(tileID)
		if err != nil {
			return fmt.Errorf("edgeengine: reading edge block %d: %w", tileID, err)
		}
		job.Edges = eb
	}

	data, err := encode(job)
	if err != nil {
		return fmt.Errorf("edgeengine: encoding tile job %d: %w", tileID, err)
	}

	h, err := tr.Out.Put(ctx, uint64(len(data)), ring.Blocking)
	if err != nil {
		return err
	}
	copy(h.Data, data)
	tr.Out.ElmSetReady(h)

	bundle := offsettable.NewBundle(data, 1, func() {})
	slot.Publish(tileID, bundle, 1, 0)
	return nil
}

// Shutdown publishes a single shutdown-flagged tile job, causing every
// downstream processor group reading this ring to exit (spec.md §4.3
// "Termination").
func (tr *TileReader) Shutdown(ctx context.Context) error {
	data, err := encode(tileJob{Shutdown: true})
	if err != nil {
		return err
	}
	h, err := tr.Out.Put(ctx, uint64(len(data)), ring.Blocking)
	if err != nil {
		return err
	}
	copy(h.Data, data)
	tr.Out.ElmSetReady(h)
	return nil
}

var errTileRange = fmt.Errorf("tile index out of range")
