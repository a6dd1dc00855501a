// Package barrier implements a reusable cyclic barrier, the Go stand-in for
// the original's pthread_barrier_wait (spec.md §5 "Where suspension
// occurs"). Every iteration boundary in the pipeline — memory_init_barrier,
// end_reduce_barrier, local_apply_barrier, end_apply_barrier,
// barrier_tile_readers, barrier_tile_processors, and each tile-processor
// group's internal barrier — is one of these.
package barrier

import "sync"

// Barrier blocks n parties at Wait until all n have arrived, then releases
// them together and resets for the next cycle. The last arrival's
// onLastArrival callback (if any) runs before the others are released,
// matching the original's pattern of doing barrier-triggered work ("last
// arrival requests the next active-tile bitset", spec.md §4.2.2).
type Barrier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	n        int
	waiting  int
	gen      uint64
	lastFunc func()
}

// New creates a Barrier for n parties.
func New(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks the calling goroutine until n parties have called Wait in
// this generation, then releases all of them. It returns true for exactly
// one caller per generation (the "last arrival").
func (b *Barrier) Wait() (isLast bool) {
	return b.WaitFunc(nil)
}

// WaitFunc behaves like Wait but, if this call is the last arrival, runs fn
// before releasing the other parties — used for the leader-does-extra-work
// barrier pattern in spec.md §4.2.2 and §4.8.
func (b *Barrier) WaitFunc(fn func()) (isLast bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.waiting++
	if b.waiting == b.n {
		if fn != nil {
			fn()
		}
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return true
	}
	for gen == b.gen {
		b.cond.Wait()
	}
	return false
}

// Parties returns the configured party count.
func (b *Barrier) Parties() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.n
}
