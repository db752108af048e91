package vst

import "sync/atomic"

// IDSource hands out message identifiers. Implementations must never return 0
// and must not reuse an identifier while a message with it is in flight.
type IDSource interface {
	NextID() uint64
}

// Sequence is a monotonic IDSource safe for concurrent use.
type Sequence struct {
	last atomic.Uint64
}

// NewSequence returns a Sequence whose first identifier is start (or 1 if start is 0).
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	if start > 0 {
		s.last.Store(start - 1)
	}
	return s
}

// NextID returns the next identifier, skipping 0 on wraparound.
func (s *Sequence) NextID() uint64 {
	for {
		if id := s.last.Add(1); id != 0 {
			return id
		}
	}
}
