// Package bitset implements the LSB-first-per-byte bitsets used for
// active_current/active_next/changed and tile_active_current/_next
// (spec.md §3, §6 "Bitsets LSB-first within each byte").
package bitset

import (
	"sync/atomic"

	"github.com/goccy/go-json"
)

// Bitset is a fixed-length bit vector with atomic single-bit operations so
// multiple Global Reducer / Applier threads can OR bits concurrently
// without a lock, per spec.md §5 ("appliers OR into a private local
// bitset and merge under active_tiles_mutex").
type Bitset struct {
	bits []uint64
	n    int
}

// New allocates a zeroed Bitset of n bits.
func New(n int) *Bitset {
	words := (n + 63) / 64
	return &Bitset{bits: make([]uint64, words), n: n}
}

// Len returns the number of addressable bits.
func (b *Bitset) Len() int { return b.n }

// Get reports whether bit i is set.
func (b *Bitset) Get(i int) bool {
	word := atomic.LoadUint64(&b.bits[i/64])
	return word&(uint64(1)<<(uint(i)%64)) != 0
}

// Set atomically sets bit i to 1 and reports whether it transitioned 0→1.
// Used to enforce the active-tile monotonicity invariant (spec.md §8): a
// bit in tile_active_next can only go 0→1 within one iteration.
func (b *Bitset) Set(i int) (transitioned bool) {
	mask := uint64(1) << (uint(i) % 64)
	addr := &b.bits[i/64]
	for {
		old := atomic.LoadUint64(addr)
		if old&mask != 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(addr, old, old|mask) {
			return true
		}
	}
}

// Clear sets every bit to 0.
func (b *Bitset) Clear() {
	for i := range b.bits {
		atomic.StoreUint64(&b.bits[i], 0)
	}
}

// Any reports whether any bit is set — used to detect global inactivity
// (spec.md §4.8, §8 "zero active tiles raises global shutdown cleanly").
func (b *Bitset) Any() bool {
	for i := range b.bits {
		if atomic.LoadUint64(&b.bits[i]) != 0 {
			return true
		}
	}
	return false
}

// Or ORs every bit of other into b. other must have the same length.
func (b *Bitset) Or(other *Bitset) {
	for i := range b.bits {
		for {
			old := atomic.LoadUint64(&b.bits[i])
			v := atomic.LoadUint64(&other.bits[i])
			if atomic.CompareAndSwapUint64(&b.bits[i], old, old|v) {
				break
			}
		}
	}
}

// Bytes serializes the bitset LSB-first per byte, matching the on-disk and
// wire representation (spec.md §6).
func (b *Bitset) Bytes() []byte {
	out := make([]byte, (b.n+7)/8)
	for i := 0; i < b.n; i++ {
		if b.Get(i) {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// FromBytes reconstructs a Bitset of n bits from an LSB-first byte slice.
func FromBytes(data []byte, n int) *Bitset {
	b := New(n)
	for i := 0; i < n; i++ {
		if data[i/8]&(1<<uint(i%8)) != 0 {
			b.Set(i)
		}
	}
	return b
}

// wireForm is the JSON-transportable shape of a Bitset, used whenever one
// crosses a ring-buffer payload boundary (e.g. edgeengine.ProcessedVertexBlock).
type wireForm struct {
	N    int    `json:"n"`
	Bits []byte `json:"bits"`
}

// MarshalJSON encodes the bitset as its bit count plus LSB-first bytes,
// since the unexported word slice carries no exported fields for the
// default encoder to see.
func (b *Bitset) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireForm{N: b.n, Bits: b.Bytes()})
}

// UnmarshalJSON reconstructs the bitset from the wire form written by
// MarshalJSON.
func (b *Bitset) UnmarshalJSON(data []byte) error {
	var w wireForm
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*b = *FromBytes(w.Bits, w.N)
	return nil
}

// Swap exchanges the underlying storage of a and b in place, used for the
// active_current/active_next and tile_active_current/_next swaps at
// iteration boundaries (spec.md §4.8 "SWAP").
func Swap(a, b *Bitset) {
	a.bits, b.bits = b.bits, a.bits
}
