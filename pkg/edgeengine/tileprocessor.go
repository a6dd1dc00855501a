package edgeengine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sslab-gatech/mosaic-engine/pkg/adaptive"
	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
	"github.com/sslab-gatech/mosaic-engine/pkg/bitset"
	"github.com/sslab-gatech/mosaic-engine/pkg/ring"
	"github.com/sslab-gatech/mosaic-engine/pkg/vertexprogram"
)

// edgesStripeSize is EDGES_STRIPE_SIZE from datatypes.h: every thread in a
// processor group claims edges in chunks of this size, round-robining across
// the group so no two threads ever touch the same edge index (spec.md §4.3).
const edgesStripeSize = 16

// ProcessorGroup is one leader plus F follower worker goroutines sharing a
// single input ring (spec.md §4.3). Unlike the original's persistent
// follower threads synchronized by a pthread_barrier, this group spawns
// 1+Followers goroutines fresh per tile and joins them with an errgroup —
// the same barrier effect with Go-idiomatic lifetimes.
type ProcessorGroup struct {
	GroupID   int
	Followers int
	In        *ring.Ring
	Out       *ring.Ring
	Program   vertexprogram.Program
	Fetcher   SourceFetcher

	// Split, if set, adapts how many of the 1+Followers threads actually
	// take part in a given tile's edge range (spec.md §4.3.2 "the adaptive
	// tile-partition split that balances load across follower threads"):
	// small tiles get fewer workers so per-thread overhead doesn't dominate.
	Split *adaptive.SplitPointTracker
}

// partialResult is one worker's private accumulator over its stripe share
// of a tile's edges, sized and reset exactly like the full tile's target
// block (matching the original's per-follower response_block_), so merging
// is just folding every worker's array through the algorithm's own
// commutative-associative ReduceVertex.
type partialResult struct {
	tgt       []float64
	activeSrc *bitset.Bitset
	activeTgt *bitset.Bitset
	nedges    uint32
}

// Run claims and processes `total` tile jobs from In in order. Each tile's
// edges are fanned out across 1+Followers worker goroutines (spec.md §4.3's
// intra-tile stripe partition) before the leader merges their partial
// accumulators and publishes one response.
func (g *ProcessorGroup) Run(ctx context.Context, total int) error {
	for i := 0; i < total; i++ {
		h, err := g.In.Get(ctx, ring.Blocking)
		if err != nil {
			return err
		}
		var job tileJob
		if err := decode(h.Data, &job); err != nil {
			g.In.ElmSetDone(h)
			return fmt.Errorf("edgeengine: decoding tile job: %w", err)
		}
		g.In.ElmSetDone(h)

		resp, err := g.process(ctx, job)
		if err != nil {
			return err
		}
		if err := g.publish(ctx, resp); err != nil {
			return err
		}
		if job.Shutdown {
			return nil
		}
	}
	return nil
}

func (g *ProcessorGroup) process(ctx context.Context, job tileJob) (ProcessedVertexBlock, error) {
	if job.Shutdown {
		return ProcessedVertexBlock{Shutdown: true}, nil
	}
	if job.Dummy {
		return ProcessedVertexBlock{TileID: job.TileID, Dummy: true}, nil
	}

	caps := g.Program.Capabilities()
	countTgt := job.Stats.CountVertexTgt
	countEdges := uint64(len(job.Edges.Src))

	workers := 1 + g.Followers
	if g.Split != nil && workers > 1 {
		workers = g.Split.PartitionCount(countEdges, 1, workers)
	}

	srcVals, srcDeg, activeSrc, err := g.Fetcher.FetchSource(job.TileID, job.Index)
	if err != nil {
		return ProcessedVertexBlock{}, fmt.Errorf("edgeengine: fetching source block for tile %d: %w", job.TileID, err)
	}

	sample := g.Split != nil && adaptive.ShouldSample(job.TileID)
	var sampleStart time.Time
	if sample {
		sampleStart = time.Now()
	}

	partials := make([]partialResult, workers)
	grp, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		grp.Go(func() error {
			partials[w] = g.processStripe(job, w, workers, countEdges, countTgt, caps, srcVals, srcDeg, activeSrc)
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return ProcessedVertexBlock{}, err
	}

	tgtVertices, activeSrcNext, activeTgtNext, _ := g.mergePartials(partials, countTgt, job.Stats.CountVertexSrc, caps)

	resp := ProcessedVertexBlock{
		TileID:      job.TileID,
		TgtVertices: tgtVertices,
		ActiveSrc:   activeSrcNext,
		ActiveTgt:   activeTgtNext,
		CountEdges:  uint32(countEdges),
	}
	if sample {
		resp.ProcessingNanos = time.Since(sampleStart).Nanoseconds()
		resp.Sampled = true
	}
	return resp, nil
}

// processStripe runs thread `id`'s share of a tile's edges: stripes of
// edgesStripeSize starting at id*edgesStripeSize and stepping by
// workers*edgesStripeSize, exactly spec.md §4.3's "starting at
// start + (1 + thread_id) · 16 and stepping by (1 + F) · 16" specialized to
// a single tile partition (start=0, thread_id counted from 0 since the
// leader itself is thread 0 here rather than a separate id space).
func (g *ProcessorGroup) processStripe(job tileJob, id, workers int, countEdges uint64, countTgt uint32, caps mosaic.CapabilitySet, srcVals []float64, srcDeg []mosaic.VertexDegree, activeSrc *bitset.Bitset) partialResult {
	p := partialResult{tgt: make([]float64, countTgt)}
	reset := g.Program.ResetTarget()
	for i := range p.tgt {
		p.tgt[i] = reset
	}
	if caps.NeedActiveTargetBlock {
		p.activeTgt = bitset.New(int(countTgt))
	}
	if caps.NeedActiveSourceBlock {
		p.activeSrc = bitset.New(int(job.Stats.CountVertexSrc))
	}

	eb := job.Edges
	stripe := uint64(edgesStripeSize)
	step := uint64(workers) * stripe
	for base := uint64(id) * stripe; base < countEdges; base += step {
		end := base + stripe
		if end > countEdges {
			end = countEdges
		}
		for i := base; i < end; i++ {
			p.nedges++

			srcLocal := eb.Src[i]
			tgtLocal := eb.Tgt[i]

			if caps.NeedActiveSourceInput && activeSrc != nil && !activeSrc.Get(int(srcLocal)) {
				continue
			}

			ec := vertexprogram.EdgeContext{
				Src:        srcVals[srcLocal],
				Tgt:        p.tgt[tgtLocal],
				SrcID:      uint64(srcLocal),
				TgtID:      uint64(tgtLocal),
				HasDegrees: caps.NeedDegreesSourceBlock || caps.NeedDegreesTargetBlock,
				Weighted:   caps.IsWeighted,
			}
			if caps.NeedDegreesSourceBlock && srcDeg != nil {
				ec.SrcDegree = srcDeg[srcLocal]
			}
			if caps.IsWeighted && eb.Weight != nil {
				ec.Weight = eb.Weight[i]
			}

			newTgt, actSrcNext, actTgtNext := g.Program.PullGather(ec)
			p.tgt[tgtLocal] = newTgt

			if actSrcNext && p.activeSrc != nil {
				p.activeSrc.Set(int(srcLocal))
			}
			if actTgtNext && p.activeTgt != nil {
				p.activeTgt.Set(int(tgtLocal))
			}
		}
	}
	return p
}

// mergePartials folds every worker's private accumulator into one tile
// response via the algorithm's own ReduceVertex — the same
// commutative-associative reduce the Global Reducer later uses to fold
// tile responses into next[], applied one level down to fold per-thread
// stripes into one tile response (spec.md §8 testable property 5:
// "followers equivalence"). ResetTarget is the identity element for every
// named algorithm's reduce (0 for sum/max, +Inf for min), so folding in an
// untouched worker slot is a no-op regardless of worker count.
func (g *ProcessorGroup) mergePartials(partials []partialResult, countTgt, countSrc uint32, caps mosaic.CapabilitySet) (tgt []float64, activeSrcNext, activeTgtNext *bitset.Bitset, nedges uint64) {
	tgt = make([]float64, countTgt)
	reset := g.Program.ResetTarget()
	for i := range tgt {
		tgt[i] = reset
	}
	for _, p := range partials {
		for j, v := range p.tgt {
			tgt[j] = g.Program.ReduceVertex(tgt[j], v, uint64(j), mosaic.VertexDegree{})
		}
		nedges += uint64(p.nedges)
		if caps.NeedActiveTargetBlock && p.activeTgt != nil {
			if activeTgtNext == nil {
				activeTgtNext = bitset.New(int(countTgt))
			}
			activeTgtNext.Or(p.activeTgt)
		}
		if caps.NeedActiveSourceBlock && p.activeSrc != nil {
			if activeSrcNext == nil {
				activeSrcNext = bitset.New(int(countSrc))
			}
			activeSrcNext.Or(p.activeSrc)
		}
	}
	return tgt, activeSrcNext, activeTgtNext, nedges
}

func (g *ProcessorGroup) publish(ctx context.Context, resp ProcessedVertexBlock) error {
	data, err := encode(resp)
	if err != nil {
		return fmt.Errorf("edgeengine: encoding processed vertex block: %w", err)
	}
	h, err := g.Out.Put(ctx, uint64(len(data)), ring.Blocking)
	if err != nil {
		return err
	}
	copy(h.Data, data)
	g.Out.ElmSetReady(h)
	return nil
}
