// Package vst implements VelocyStream chunk framing.
//
// A logical message is split into one or more chunks. Every chunk carries a
// fixed 24-byte little-endian header followed by its payload slice:
//
//	offset  0..4   length            u32  header + payload bytes
//	offset  4..8   chunk_x           u32  see Descriptor
//	offset  8..16  message_id        u64  0 is reserved
//	offset 16..24  message_length    u64  logical payload bytes, headers excluded
//	offset 24..    data
package vst

import (
	"encoding/binary"
	"math"
)

// HeaderSize is the size of the fixed chunk header in bytes.
const HeaderSize = 24

// Header is the fixed chunk header.
type Header struct {
	// Length is the chunk size including this header.
	Length uint32
	// Descriptor distinguishes first and continuation chunks.
	Descriptor Descriptor
	// MessageID identifies the logical message. 0 is never assigned.
	MessageID uint64
	// MessageLength is the total payload size of the logical message.
	MessageLength uint64
}

// Chunk is one framed unit of a logical message.
type Chunk struct {
	Header
	Data []byte
}

// NewChunk builds a chunk around data and sets Length.
func NewChunk(d Descriptor, messageID, messageLength uint64, data []byte) (*Chunk, error) {
	length, err := chunkLength(len(data))
	if err != nil {
		return nil, err
	}
	return &Chunk{
		Header: Header{
			Length:        length,
			Descriptor:    d,
			MessageID:     messageID,
			MessageLength: messageLength,
		},
		Data: data,
	}, nil
}

func chunkLength(payload int) (uint32, error) {
	if uint64(payload) > math.MaxUint32-HeaderSize {
		return 0, invalidInput("chunk payload of %d bytes does not fit a u32 length", payload)
	}
	return uint32(HeaderSize + payload), nil
}

// EncodeChunk serializes header fields followed by data. The Length field of h
// is ignored and recomputed from data.
func EncodeChunk(h Header, data []byte) ([]byte, error) {
	c, err := NewChunk(h.Descriptor, h.MessageID, h.MessageLength, data)
	if err != nil {
		return nil, err
	}
	return c.AppendBinary(make([]byte, 0, c.Length))
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c *Chunk) MarshalBinary() ([]byte, error) {
	return c.AppendBinary(make([]byte, 0, HeaderSize+len(c.Data)))
}

// AppendBinary appends the wire form of c to b.
// Length must agree with the payload; a hand-built chunk that disagrees is rejected.
func (c *Chunk) AppendBinary(b []byte) ([]byte, error) {
	length, err := chunkLength(len(c.Data))
	if err != nil {
		return nil, err
	}
	if c.Length != length {
		return nil, framingError("chunk length %d does not match payload of %d bytes", c.Length, len(c.Data))
	}
	b = c.Header.appendTo(b)
	return append(b, c.Data...), nil
}

func (h Header) appendTo(b []byte) []byte {
	b = binary.LittleEndian.AppendUint32(b, h.Length)
	b = binary.LittleEndian.AppendUint32(b, h.Descriptor.Uint32())
	b = binary.LittleEndian.AppendUint64(b, h.MessageID)
	return binary.LittleEndian.AppendUint64(b, h.MessageLength)
}

// ParseHeader decodes the fixed header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, framingError("buffer of %d bytes is shorter than the %d-byte header", len(b), HeaderSize)
	}
	return Header{
		Length:        binary.LittleEndian.Uint32(b[0:4]),
		Descriptor:    ParseDescriptor(binary.LittleEndian.Uint32(b[4:8])),
		MessageID:     binary.LittleEndian.Uint64(b[8:16]),
		MessageLength: binary.LittleEndian.Uint64(b[16:24]),
	}, nil
}

// DecodeChunk parses one complete chunk. The buffer must hold exactly the
// declared length. The returned Data aliases buf.
func DecodeChunk(buf []byte) (*Chunk, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if uint64(h.Length) != uint64(len(buf)) {
		return nil, framingError("declared length %d does not match buffer of %d bytes", h.Length, len(buf))
	}
	data := buf[HeaderSize:]
	if uint64(len(data)) != uint64(h.Length)-HeaderSize {
		return nil, framingError("payload of %d bytes does not match declared length %d", len(data), h.Length)
	}
	return &Chunk{Header: h, Data: data}, nil
}
