package mosaic

import "errors"

// Error kinds per spec.md §7. Fatal kinds abandon the current iteration and
// signal global shutdown; RingBufferFull is recoverable by the caller.
var (
	ErrDiskRead        = errors.New("disk read error")
	ErrRingBufferFull  = errors.New("ring buffer full")
	ErrRingBufferClosed = errors.New("ring buffer closed")
	ErrTileCorruption  = errors.New("tile corruption: magic mismatch")
	ErrConfigMismatch  = errors.New("config mismatch: index bits or weighted flag disagrees with file")
	ErrOverflow        = errors.New("tile edge count exceeds MAX_EDGES_PER_TILE")
	ErrTransport       = errors.New("cross-segment transport error")
)

// IsFatal reports whether err is one of the kinds treated as fatal (can
// corrupt shared state): disk read, tile corruption, config mismatch, or
// overflow. ErrTransport is not classified as fatal, and no transport retry
// budget is tracked.
func IsFatal(err error) bool {
	switch {
	case errors.Is(err, ErrDiskRead),
		errors.Is(err, ErrTileCorruption),
		errors.Is(err, ErrConfigMismatch),
		errors.Is(err, ErrOverflow):
		return true
	default:
		return false
	}
}
