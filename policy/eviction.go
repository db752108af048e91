// Package policy decides which in-flight messages to give up on.
//
// The reassembler keeps partial messages forever. A sender that dies
// mid-message, or a lost chunk, leaves an entry behind; an Eviction bounds
// that leak by idle time, entry count and buffered bytes.
package policy

import (
	"time"

	"github.com/justapithecus/vst/assembly"
)

// Eviction bounds the reassembly table. Zero fields disable their rule.
type Eviction struct {
	// MaxAge evicts entries that have received no chunk for longer than this.
	MaxAge time.Duration
	// MaxPending caps the number of in-flight messages.
	MaxPending int
	// MaxPendingBytes caps the payload bytes held by in-flight messages.
	MaxPendingBytes uint64
}

// Enabled returns true if at least one rule is set.
func (e Eviction) Enabled() bool {
	return e.MaxAge > 0 || e.MaxPending > 0 || e.MaxPendingBytes > 0
}

// Select returns the ids to evict from entries, which must be ordered
// oldest first (as Reassembler.Pending returns them).
//
// Idle entries go first. Then, oldest first, entries are dropped until
// both the count and byte limits hold for what remains.
func (e Eviction) Select(entries []assembly.EntryInfo) []uint64 {
	var ids []uint64

	remaining := make([]assembly.EntryInfo, 0, len(entries))
	var bytes uint64
	for _, info := range entries {
		if e.MaxAge > 0 && info.Idle > e.MaxAge {
			ids = append(ids, info.MessageID)
			continue
		}
		remaining = append(remaining, info)
		bytes += info.ReceivedBytes
	}

	kept := len(remaining)
	for _, info := range remaining {
		overCount := e.MaxPending > 0 && kept > e.MaxPending
		overBytes := e.MaxPendingBytes > 0 && bytes > e.MaxPendingBytes
		if !overCount && !overBytes {
			break
		}
		ids = append(ids, info.MessageID)
		kept--
		bytes -= info.ReceivedBytes
	}
	return ids
}

// Sweep evicts the entries Select chooses from r and returns their ids.
func (e Eviction) Sweep(r *assembly.Reassembler) []uint64 {
	if !e.Enabled() {
		return nil
	}
	var evicted []uint64
	for _, id := range e.Select(r.Pending()) {
		if r.Evict(id) {
			evicted = append(evicted, id)
		}
	}
	return evicted
}
