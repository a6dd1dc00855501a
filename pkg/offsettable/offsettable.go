// Package offsettable implements the per-tile offset-table slot lifecycle
// from spec.md §3 ("Run-time control entities") and §4.9's state machine:
//
//	IDLE -> ACQUIRED -> READY -> READY' (refcnt>0) -> IDLE
//
// A reader publishes a tile by CASing data_active false->true, writing
// data, then setting data_ready. Each downstream consumer releases the
// slot; the last release frees the bundle and returns the slot to IDLE.
package offsettable

import (
	"sync"

	"github.com/google/uuid"

	mosaic "github.com/sslab-gatech/mosaic-engine/pkg/apis/mosaic"
)

// Bundle is the arena-per-batch slab described in spec.md §9 ("Raw pointer
// bundles → arena + refcount"): a shared allocation backing 1+ tiles plus
// a trailing refcount word, released to its ring only when every
// registered consumer has dropped its handle.
type Bundle struct {
	ID   uuid.UUID
	Data []byte

	mu      sync.Mutex
	refcnt  int
	release func()
}

// NewBundle wraps data with a refcount of n expected consumers. release is
// invoked exactly once, when the last consumer calls Release.
func NewBundle(data []byte, expectedConsumers int, release func()) *Bundle {
	return &Bundle{ID: uuid.New(), Data: data, refcnt: expectedConsumers, release: release}
}

// Release decrements the bundle's refcount; the last decrementer triggers
// the release callback (spec.md §3 "last decrementer releases the bundle
// memory back to the ring buffer").
func (b *Bundle) Release() {
	b.mu.Lock()
	b.refcnt--
	fire := b.refcnt == 0
	b.mu.Unlock()
	if fire && b.release != nil {
		b.release()
	}
}

// State is the offset-table slot's lifecycle phase (spec.md §4.9).
type State int

const (
	Idle State = iota
	Acquired
	Ready
)

// Slot is one entry of a per-engine offset table, indexed by local tile id.
type Slot struct {
	mu          sync.Mutex
	state       State
	active      bool
	bundle      *Bundle
	tileBlockID uint64

	// processRefcnt/fetchRefcnt mirror the original's process_refcnt and
	// fetch_refcnt meta fields (spec.md §3); each tracks a distinct class
	// of consumer so a slot isn't recycled until every class has released
	// it. The bundle refcount lives on Bundle itself.
	processRefcnt int
	fetchRefcnt   int
}

// TryAcquire CASes data_active false->true. It returns false if a stale
// consumer still holds the slot, in which case the caller must spin with a
// bounded yield per spec.md §4.2.5 ("never corrupting the slot").
func (s *Slot) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	s.state = Acquired
	return true
}

// Publish attaches the bundle and flips data_ready=true, transitioning
// Acquired->Ready (spec.md §4.2.5).
func (s *Slot) Publish(tileBlockID uint64, bundle *Bundle, processRefcnt, fetchRefcnt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tileBlockID = tileBlockID
	s.bundle = bundle
	s.processRefcnt = processRefcnt
	s.fetchRefcnt = fetchRefcnt
	s.state = Ready
}

// Ready reports whether the slot has a published, consumable bundle.
func (s *Slot) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Ready
}

// Bundle returns the slot's current bundle, or nil if not yet published.
func (s *Slot) Bundle() *Bundle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bundle
}

// ConsumerKind distinguishes the two refcount classes a slot tracks.
type ConsumerKind int

const (
	ProcessConsumer ConsumerKind = iota
	FetchConsumer
)

// Release decrements the named refcount class; once every class reaches
// zero the slot returns to Idle and its bundle is released (Ready' -> Idle
// in spec.md §4.9).
func (s *Slot) Release(kind ConsumerKind) {
	s.mu.Lock()
	switch kind {
	case ProcessConsumer:
		if s.processRefcnt > 0 {
			s.processRefcnt--
		}
	case FetchConsumer:
		if s.fetchRefcnt > 0 {
			s.fetchRefcnt--
		}
	}
	drained := s.processRefcnt == 0 && s.fetchRefcnt == 0
	bundle := s.bundle
	if drained {
		s.state = Idle
		s.active = false
		s.bundle = nil
	}
	s.mu.Unlock()
	if drained && bundle != nil {
		bundle.Release()
	}
}

// Table is a per-engine array of Slots, one per local tile id.
type Table struct {
	slots []Slot
}

// NewTable allocates a Table sized for `tiles` local tile ids.
func NewTable(tiles int) *Table {
	return &Table{slots: make([]Slot, tiles)}
}

// Slot returns the slot for local tile id i.
func (t *Table) Slot(i uint64) *Slot {
	return &t.slots[i]
}

// Len returns the number of slots.
func (t *Table) Len() int { return len(t.slots) }

// BlockIDOf is a convenience accessor matching the original's
// meta.tile_block->block_id field (spec.md §3).
func (s *Slot) BlockIDOf() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tileBlockID
}

// CheckMagic validates the magic identifier a Tile Processor must see on
// every vertex_edge_tiles_block (spec.md §8 "Magic check").
func CheckMagic(magic uint64) error {
	if magic != mosaic.MagicIdentifier {
		return mosaic.ErrTileCorruption
	}
	return nil
}
