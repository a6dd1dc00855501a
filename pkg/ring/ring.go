// Package ring implements the multi-producer/multi-consumer ring-buffer
// substrate described in spec.md §4.1: a fixed-size byte region holding
// variably sized elements, each carrying a {size, status} header, whose
// reclamation only ever advances over a contiguous prefix of "done"
// elements.
//
// The original maps the same physical pages at two adjacent virtual
// ranges so any element is addressable as one contiguous span without a
// wrap-around branch. Go cannot remap the same physical pages without
// cgo/mmap tricks that would fight the GC, so this implementation takes
// the portable alternative spec.md §9 explicitly allows ("an implementer
// may instead branch on wrap-around ... Preserve the API contract").
package ring

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// Status is the two-bit element lifecycle tag from spec.md §4.1.
type Status int32

const (
	StatusFree Status = iota
	StatusAllocated
	StatusReady
	StatusDone
)

// Mode selects blocking vs non-blocking semantics for Put/Get.
type Mode int

const (
	Blocking Mode = iota
	NonBlocking
)

type element struct {
	offset uint64
	size   uint64
	status Status

	// scratch holds the disconnected copy Put() hands out as Handle.Data
	// when this element's span wraps past capacity — the backing array has
	// no single contiguous byte range for it. ElmSetReady writes scratch
	// back into buf (split at the wrap point) before the element becomes
	// visible to Get; nil for elements that never wrapped.
	scratch []byte
}

// Handle is a reference into the ring returned by Put/Get. Data is a
// contiguous slice view over the ring's backing array — safe to use until
// the matching ElmSetDone — except for an element whose span wraps past
// capacity, where Data is a separate copy (see element.scratch).
type Handle struct {
	Data   []byte
	offset uint64
	size   uint64
}

// Ring is one instance of the substrate. Each edgeengine.Engine uses two:
// reader-to-processor tile jobs and processor responses. Index data and
// active-tiles propagation do not pass through a Ring.
type Ring struct {
	mu   sync.Mutex
	cond *sync.Cond

	buf       []byte
	capacity  uint64
	alignment uint64

	head       uint64 // next byte offset to allocate (monotonic, unbounded)
	readyFront uint64 // boundary: everything below is Ready or Done
	doneFront  uint64 // boundary: everything below is Done (reclaimed)
	getCursor  uint64 // next offset Get() will hand out

	elems map[uint64]*element // keyed by offset, live allocations only

	puts  atomic.Uint64
	gets  atomic.Uint64
	drops atomic.Uint64

	closed bool
}

const headerSize = 16 // size(8) + status(8), conservatively padded

// New allocates a Ring over `capacity` bytes, aligning every element to
// `alignment` (commonly cacheline or page size, spec.md §4.1).
func New(capacity uint64, alignment uint64) *Ring {
	if alignment == 0 {
		alignment = 64
	}
	r := &Ring{
		buf:       make([]byte, capacity),
		capacity:  capacity,
		alignment: alignment,
		elems:     make(map[uint64]*element),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Close marks the ring closed; blocked Put/Get callers are woken and
// return ErrRingBufferClosed.
func (r *Ring) Close() {
	r.mu.Lock()
	r.closed = true
	r.cond.Broadcast()
	r.mu.Unlock()
}

func (r *Ring) requiredSpan(size uint64) uint64 {
	return mosaic.AlignUp(headerSize+size, r.alignment)
}

// Put reserves `size` bytes plus header, returning a Handle whose Data is
// ready to be filled by the caller. The element starts in StatusAllocated;
// the caller must call ElmSetReady once the payload is written.
func (r *Ring) Put(ctx context.Context, size uint64, mode Mode) (Handle, error) {
	span := r.requiredSpan(size)
	if span > r.capacity {
		return Handle{}, mosaic.ErrOverflow
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.closed {
			return Handle{}, mosaic.ErrRingBufferClosed
		}
		if r.head-r.doneFront+span <= r.capacity {
			break
		}
		if mode == NonBlocking {
			r.drops.Inc()
			return Handle{}, mosaic.ErrRingBufferFull
		}
		if waitCtx(ctx, r.cond) {
			return Handle{}, ctx.Err()
		}
	}

	off := r.head
	r.head += span
	e := &element{offset: off, size: size, status: StatusAllocated}
	r.elems[off] = e
	r.puts.Inc()

	start := off % r.capacity
	data := r.slice(start, size)
	if start+size > r.capacity {
		// data is a fresh, disconnected copy (see slice) — remember it so
		// ElmSetReady can write the caller's fill-in back into buf.
		e.scratch = data
	}
	return Handle{Data: data, offset: off, size: size}, nil
}

// slice returns a contiguous view of `size` bytes starting at ring-relative
// byte `start`, copying into a fresh buffer only when the span wraps —
// the portable stand-in for the double-mapped ring (see package doc).
func (r *Ring) slice(start, size uint64) []byte {
	if start+size <= r.capacity {
		return r.buf[start : start+size]
	}
	out := make([]byte, size)
	first := r.capacity - start
	copy(out, r.buf[start:])
	copy(out[first:], r.buf[:size-first])
	return out
}

// ElmSetReady transitions an element Allocated→Ready and, if it is at the
// current ready front, advances that front past every consecutive Ready
// element, waking blocked Get callers (spec.md §4.1 "elm_set_ready").
func (r *Ring) ElmSetReady(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.elems[h.offset]
	if e == nil {
		return
	}
	if e.scratch != nil {
		r.writeWrapped(h.offset%r.capacity, e.scratch)
		e.scratch = nil
	}
	e.status = StatusReady
	r.advanceReadyFront()
	r.cond.Broadcast()
}

// writeWrapped copies data, whose span wraps past capacity, into buf —
// the inverse of slice's wrap-read, so a wrapped Put's payload actually
// lands in the backing array instead of vanishing with its scratch copy.
func (r *Ring) writeWrapped(start uint64, data []byte) {
	first := r.capacity - start
	copy(r.buf[start:], data[:first])
	copy(r.buf[:uint64(len(data))-first], data[first:])
}

func (r *Ring) advanceReadyFront() {
	for {
		e, ok := r.elems[r.readyFront]
		if !ok || e.status == StatusAllocated || e.status == StatusFree {
			return
		}
		r.readyFront += r.requiredSpan(e.size)
	}
}

// Get waits for the next Ready element at the FIFO front and hands it out,
// advancing the internal get cursor. It does not reclaim the element —
// callers must call ElmSetDone once finished (spec.md §4.1 "get").
func (r *Ring) Get(ctx context.Context, mode Mode) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if r.getCursor < r.readyFront {
			break
		}
		if r.closed {
			return Handle{}, mosaic.ErrRingBufferClosed
		}
		if mode == NonBlocking {
			return Handle{}, mosaic.ErrRingBufferFull
		}
		if waitCtx(ctx, r.cond) {
			return Handle{}, ctx.Err()
		}
	}

	off := r.getCursor
	e := r.elems[off]
	r.getCursor += r.requiredSpan(e.size)
	r.gets.Inc()
	start := off % r.capacity
	return Handle{Data: r.slice(start, e.size), offset: off, size: e.size}, nil
}

// ElmSetDone transitions an element Ready→Done and, if it is at the
// reclamation front, advances that front and the allocation window,
// signalling blocked Put callers (spec.md §4.1 "elm_set_done").
func (r *Ring) ElmSetDone(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.elems[h.offset]
	if e == nil {
		return
	}
	e.status = StatusDone
	for {
		e2, ok := r.elems[r.doneFront]
		if !ok || e2.status != StatusDone {
			break
		}
		delete(r.elems, r.doneFront)
		r.doneFront += r.requiredSpan(e2.size)
	}
	r.cond.Broadcast()
}

// Stats reports cumulative put/get/drop counters.
func (r *Ring) Stats() (puts, gets, drops uint64) {
	return r.puts.Load(), r.gets.Load(), r.drops.Load()
}

// Depth reports the number of bytes currently allocated but not yet
// reclaimed, for the metrics gauge "ring depth" (SPEC_FULL.md §A).
func (r *Ring) Depth() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.head - r.doneFront
}

// waitCtx waits on cond, but also returns true early if ctx is done. It
// must be called with cond's lock held; it re-acquires the lock before
// returning, matching sync.Cond.Wait's contract.
func waitCtx(ctx context.Context, cond *sync.Cond) (cancelled bool) {
	if ctx == nil {
		cond.Wait()
		return false
	}
	select {
	case <-ctx.Done():
		return true
	default:
	}
	stop := context.AfterFunc(ctx, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
	})
	defer stop()
	cond.Wait()
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
