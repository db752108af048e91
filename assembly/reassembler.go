// Package assembly reconstructs logical messages from chunks.
//
// A Reassembler keeps one entry per in-flight message id. Chunks for
// different messages may interleave arbitrarily and chunks of one message
// may arrive in any order. The Reassembler never evicts on its own; callers
// inspect Pending and call Evict (see package policy).
package assembly

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/justapithecus/vst/vst"
)

// Option configures a Reassembler.
type Option func(*Reassembler)

// WithClock overrides the time source used for entry ages.
func WithClock(now func() time.Time) Option {
	return func(r *Reassembler) { r.now = now }
}

// WithMaxMessageLength rejects messages declaring more than n bytes.
// Zero means unlimited.
func WithMaxMessageLength(n uint64) Option {
	return func(r *Reassembler) { r.maxMessageLength = n }
}

// EntryInfo is a point-in-time view of an in-flight message.
type EntryInfo struct {
	MessageID     uint64        `json:"message_id"`
	MessageLength uint64        `json:"message_length"`
	TotalChunks   uint32        `json:"total_chunks"` // 0 until the first chunk arrives
	Received      int           `json:"received_chunks"`
	ReceivedBytes uint64        `json:"received_bytes"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Age           time.Duration `json:"age"`
	Idle          time.Duration `json:"idle"` // since the latest chunk
}

// entry accumulates the chunks of one message.
type entry struct {
	messageLength uint64
	total         uint32
	parts         map[uint32][]byte // position -> payload
	receivedBytes uint64
	createdAt     time.Time
	updatedAt     time.Time
}

// Reassembler accumulates chunks by message id.
// Safe for concurrent use; all table mutations are serialized.
type Reassembler struct {
	mu               sync.Mutex
	entries          map[uint64]*entry
	pendingBytes     uint64
	now              func() time.Time
	maxMessageLength uint64
}

// New creates an empty Reassembler.
func New(opts ...Option) *Reassembler {
	r := &Reassembler{
		entries: make(map[uint64]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Accept adds a chunk. It returns the message once every position 0..N-1
// has been seen, where N is the count declared by the first chunk, and nil
// while the message is still incomplete.
//
// Returns a protocol error (and discards the message's entry) when:
//   - the message id is 0
//   - the descriptor is malformed
//   - two first chunks declare different totals
//   - chunks of one message declare different message lengths
//   - a position is at or past the declared total
//   - a position repeats with a different payload length
//   - received or reassembled bytes disagree with the declared length
//
// A framing error is returned for a chunk whose Length disagrees with its payload.
func (r *Reassembler) Accept(c *vst.Chunk) (*vst.Message, error) {
	if c == nil {
		return nil, &vst.Error{Kind: vst.KindInvalidInput, Msg: "nil chunk"}
	}
	id := c.MessageID
	if id == 0 {
		return nil, vst.ProtocolError(0, "message id 0 is reserved")
	}
	if uint64(c.Length) != uint64(vst.HeaderSize)+uint64(len(c.Data)) {
		return nil, &vst.Error{
			Kind:      vst.KindFraming,
			MessageID: id,
			Msg:       "chunk length does not match payload",
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := c.Descriptor.Validate(); err != nil {
		r.discardLocked(id)
		return nil, &vst.Error{Kind: vst.KindProtocol, MessageID: id, Msg: "invalid chunk descriptor", Err: err}
	}
	if r.maxMessageLength > 0 && c.MessageLength > r.maxMessageLength {
		r.discardLocked(id)
		return nil, vst.ProtocolError(id, "message length %d exceeds max %d", c.MessageLength, r.maxMessageLength)
	}

	now := r.now()
	e, exists := r.entries[id]
	if !exists {
		e = &entry{
			messageLength: c.MessageLength,
			parts:         make(map[uint32][]byte),
			createdAt:     now,
		}
		r.entries[id] = e
	}
	e.updatedAt = now

	if e.messageLength != c.MessageLength {
		r.discardLocked(id)
		return nil, vst.ProtocolError(id, "message length %d conflicts with %d from an earlier chunk",
			c.MessageLength, e.messageLength)
	}

	position := c.Descriptor.Position()
	if c.Descriptor.IsFirst() {
		total := c.Descriptor.Total()
		if e.total != 0 && e.total != total {
			r.discardLocked(id)
			return nil, vst.ProtocolError(id, "first chunk declares %d chunks, earlier first chunk declared %d",
				total, e.total)
		}
		e.total = total
		for p := range e.parts {
			if p >= total {
				r.discardLocked(id)
				return nil, vst.ProtocolError(id, "chunk at position %d exceeds declared total %d", p, total)
			}
		}
	} else if e.total != 0 && position >= e.total {
		r.discardLocked(id)
		return nil, vst.ProtocolError(id, "chunk at position %d exceeds declared total %d", position, e.total)
	}

	if prev, dup := e.parts[position]; dup {
		if len(prev) != len(c.Data) {
			r.discardLocked(id)
			return nil, vst.ProtocolError(id, "duplicate chunk at position %d with %d bytes, had %d",
				position, len(c.Data), len(prev))
		}
		// Same-length retransmission: keep the first payload.
		return nil, nil
	}

	e.parts[position] = c.Data
	e.receivedBytes += uint64(len(c.Data))
	r.pendingBytes += uint64(len(c.Data))
	if e.receivedBytes > e.messageLength {
		r.discardLocked(id)
		return nil, vst.ProtocolError(id, "received %d bytes, message declares %d", e.receivedBytes, e.messageLength)
	}

	if e.total == 0 || uint32(len(e.parts)) != e.total {
		return nil, nil
	}
	return r.completeLocked(id, e)
}

// completeLocked concatenates a finished entry and removes it.
// Caller must hold r.mu.
func (r *Reassembler) completeLocked(id uint64, e *entry) (*vst.Message, error) {
	r.discardLocked(id)

	data := make([]byte, 0, e.receivedBytes)
	for p := range e.total {
		data = append(data, e.parts[p]...)
	}
	if uint64(len(data)) != e.messageLength {
		return nil, vst.ProtocolError(id, "reassembled %d bytes, message declares %d", len(data), e.messageLength)
	}

	return &vst.Message{
		ID:     id,
		Length: e.messageLength,
		Chunks: e.total,
		Data:   data,
	}, nil
}

// discardLocked drops the entry for id if present. Caller must hold r.mu.
func (r *Reassembler) discardLocked(id uint64) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	r.pendingBytes -= e.receivedBytes
	delete(r.entries, id)
	return true
}

// Evict drops the in-flight entry for id. Returns false if there was none.
func (r *Reassembler) Evict(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.discardLocked(id)
}

// Len returns the number of in-flight messages.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// PendingBytes returns the payload bytes held by in-flight messages.
func (r *Reassembler) PendingBytes() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingBytes
}

// Pending returns a snapshot of in-flight entries, oldest first.
func (r *Reassembler) Pending() []EntryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	infos := make([]EntryInfo, 0, len(r.entries))
	for id, e := range r.entries {
		infos = append(infos, EntryInfo{
			MessageID:     id,
			MessageLength: e.messageLength,
			TotalChunks:   e.total,
			Received:      len(e.parts),
			ReceivedBytes: e.receivedBytes,
			CreatedAt:     e.createdAt,
			UpdatedAt:     e.updatedAt,
			Age:           now.Sub(e.createdAt),
			Idle:          now.Sub(e.updatedAt),
		})
	}
	slices.SortFunc(infos, func(a, b EntryInfo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.MessageID, b.MessageID)
	})
	return infos
}
