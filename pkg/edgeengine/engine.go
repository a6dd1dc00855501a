package edgeengine

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/sslab-gatech/mosaic-engine/pkg/adaptive"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
	"github.com/sslab-gatech/mosaic-engine/pkg/offsettable"
	"github.com/sslab-gatech/mosaic-engine/pkg/ring"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// Engine is one edge-processor instance: Tile Reader threads feeding Tile
// Processor groups over a shared ring, per spec.md §2/§4.2/§4.3. It owns
// the local-to-this-engine tile numbering; the Vertex Domain addresses
// tiles by global id and uses mosaic.EngineOf to route to the right Engine.
type Engine struct {
	ID int

	Source TileSource
	Index  IndexSource
	Table  *offsettable.Table

	ReaderThreads int
	Followers     int
	RingCapacity  uint64

	Program vertexprogram.Program
	Fetcher SourceFetcher

	// Split adapts the Tile Processor's per-tile worker count (spec.md
	// §4.3.2); left nil, every tile always uses all 1+Followers workers.
	// Production wiring shares one tracker between every Engine and the
	// Vertex Domain's Global Reducer (cmd/mosaicd), since the split point
	// is process-wide, not per-engine.
	Split *adaptive.SplitPointTracker

	in  *ring.Ring
	out *ring.Ring
}

// roundCounter is a package-private Counter backed by an atomic, created
// fresh per round so the ReaderThreads TileReader goroutines sharing it
// (edgeengine.Engine.RunRound) can draw disjoint tile indices without a
// data race (spec.md §4.2 step 1 "atomically draw").
type roundCounter struct{ n atomic.Uint64 }

func (c *roundCounter) Next() uint64 {
	return c.n.Inc() - 1
}

// New builds an Engine with freshly allocated reader-to-processor and
// processor-to-reducer rings.
func New(id int, source TileSource, index IndexSource, program vertexprogram.Program, fetcher SourceFetcher, readerThreads, followers int, ringCapacity uint64) *Engine {
	stats := source.Stats()
	return &Engine{
		ID:            id,
		Source:        source,
		Index:         index,
		Table:         offsettable.NewTable(len(stats)),
		ReaderThreads: readerThreads,
		Followers:     followers,
		RingCapacity:  ringCapacity,
		Program:       program,
		Fetcher:       fetcher,
		in:            ring.New(ringCapacity, 64),
		out:           ring.New(ringCapacity, 64),
	}
}

// RunRound drives one full iteration's worth of tiles through this engine:
// ReaderThreads reader goroutines draw from `order` (every local tile id
// this engine owns this iteration), respecting selective scheduling via
// `active`; a single processor group of 1+Followers workers drains their
// output. It returns exactly len(order) ProcessedVertexBlock responses,
// one per tile (dummy-flagged for skipped tiles), in arrival order.
func (e *Engine) RunRound(ctx context.Context, order []uint64, active *bitset.Bitset) ([]ProcessedVertexBlock, error) {
	if len(order) == 0 {
		return nil, nil
	}

	counter := &roundCounter{}
	readers := make([]*TileReader, e.ReaderThreads)
	for i := range readers {
		readers[i] = &TileReader{
			EngineID:               e.ID,
			Source:                 e.Source,
			Index:                  e.Index,
			Out:                    e.in,
			Table:                  e.Table,
			Counter:                counter,
			UseSelectiveScheduling: active != nil,
		}
	}

	group := &ProcessorGroup{GroupID: 0, Followers: e.Followers, In: e.in, Out: e.out, Program: e.Program, Fetcher: e.Fetcher, Split: e.Split}
	responses := make([]ProcessedVertexBlock, 0, len(order))

	grp, gctx := errgroup.WithContext(ctx)
	for _, r := range readers {
		r := r
		grp.Go(func() error { return r.ReadRound(gctx, order, active) })
	}
	grp.Go(func() error { return group.Run(gctx, len(order)) })
	grp.Go(func() error {
		for i := 0; i < len(order); i++ {
			h, err := e.out.Get(gctx, ring.Blocking)
			if err != nil {
				return err
			}
			var resp ProcessedVertexBlock
			if err := decode(h.Data, &resp); err != nil {
				e.out.ElmSetDone(h)
				return fmt.Errorf("edgeengine: decoding processed block: %w", err)
			}
			e.out.ElmSetDone(h)
			// The processor was the tile's only consumer: return its slot
			// to Idle so the next round's reader can acquire it again.
			e.Table.Slot(resp.TileID).Release(offsettable.ProcessConsumer)
			responses = append(responses, resp)
		}
		return nil
	})

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

// Close tears down this engine's rings.
func (e *Engine) Close() {
	e.in.Close()
	e.out.Close()
}
