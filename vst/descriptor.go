package vst

import (
	"errors"
	"fmt"
)

// MaxChunkNumber is the largest chunk count or position a descriptor can carry.
// The number is stored in the upper 31 bits of the chunk_x field.
const MaxChunkNumber = 1<<31 - 1

// Descriptor is the decoded chunk_x header field.
//
// Bit 0 marks the first chunk of a message. The remaining bits hold the total
// chunk count on the first chunk and the chunk's own position on every
// continuation chunk. Positions are 0-based over the split sequence, so the
// first chunk is position 0 and continuation positions start at 1.
type Descriptor struct {
	first  bool
	number uint32
}

// FirstChunk returns the descriptor of the first chunk of a message split
// into total chunks.
func FirstChunk(total uint32) Descriptor {
	return Descriptor{first: true, number: total}
}

// ContinuationChunk returns the descriptor of the chunk at position.
func ContinuationChunk(position uint32) Descriptor {
	return Descriptor{number: position}
}

// ParseDescriptor decodes a raw chunk_x value. Every value decodes; use
// Validate to reject descriptors that cannot occur on the wire.
func ParseDescriptor(v uint32) Descriptor {
	first, number := DecodeDescriptor(v)
	return Descriptor{first: first, number: number}
}

// IsFirst reports whether this is the first chunk of a message.
func (d Descriptor) IsFirst() bool { return d.first }

// Total returns the declared chunk count. Only first chunks carry it; 0 otherwise.
func (d Descriptor) Total() uint32 {
	if !d.first {
		return 0
	}
	return d.number
}

// Position returns the 0-based position of the chunk within its message.
func (d Descriptor) Position() uint32 {
	if d.first {
		return 0
	}
	return d.number
}

// Uint32 returns the wire value.
func (d Descriptor) Uint32() uint32 {
	if d.first {
		return d.number<<1 | 1
	}
	return d.number << 1
}

// Validate reports descriptors that cannot be produced by a well-behaved sender.
func (d Descriptor) Validate() error {
	if d.number > MaxChunkNumber {
		return fmt.Errorf("chunk number %d exceeds max %d", d.number, MaxChunkNumber)
	}
	if d.first && d.number == 0 {
		return errors.New("first chunk declares zero chunks")
	}
	if !d.first && d.number == 0 {
		return errors.New("continuation chunk at position 0")
	}
	return nil
}

func (d Descriptor) String() string {
	if d.first {
		return fmt.Sprintf("first(total=%d)", d.number)
	}
	return fmt.Sprintf("continuation(position=%d)", d.number)
}

// EncodeDescriptor encodes the chunk_x field for the chunk at chunkIndex
// (0-based) of a message split into totalChunks chunks.
//
// A single-chunk message always encodes to 3. The first chunk of a
// multi-chunk message carries the count; continuations carry their index.
func EncodeDescriptor(chunkIndex, totalChunks uint32) (uint32, error) {
	if totalChunks == 0 {
		return 0, invalidInput("total chunks must be at least 1")
	}
	if totalChunks > MaxChunkNumber {
		return 0, invalidInput("total chunks %d exceeds max %d", totalChunks, MaxChunkNumber)
	}
	if chunkIndex >= totalChunks {
		return 0, invalidInput("chunk index %d out of range for %d chunks", chunkIndex, totalChunks)
	}
	switch {
	case totalChunks == 1:
		return 3, nil
	case chunkIndex == 0:
		return FirstChunk(totalChunks).Uint32(), nil
	default:
		return ContinuationChunk(chunkIndex).Uint32(), nil
	}
}

// DecodeDescriptor splits a raw chunk_x value. When isFirst is true, number
// is the message's chunk count; otherwise it is the chunk's position.
func DecodeDescriptor(v uint32) (isFirst bool, number uint32) {
	return v&1 == 1, v >> 1
}
