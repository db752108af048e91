// Package metrics provides per-session counters for chunk streams.
//
// The Collector accumulates counters while a session runs. It is a leaf
// package with no internal dependencies. Reassembly table gauges are
// absorbed once at session close rather than tracked live.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Wire
	ChunksRead     int64 `json:"chunks_read"`
	ChunksWritten  int64 `json:"chunks_written"`
	FramingErrors  int64 `json:"framing_errors"`
	ProtocolErrors int64 `json:"protocol_errors"`

	// Messages
	MessagesAssembled int64 `json:"messages_assembled"`
	MessagesSent      int64 `json:"messages_sent"`
	BytesAssembled    int64 `json:"bytes_assembled"`
	EntriesEvicted    int64 `json:"entries_evicted"`

	// Reassembly table at close (absorbed from the reassembler)
	PendingAtClose      int64 `json:"pending_at_close"`
	PendingBytesAtClose int64 `json:"pending_bytes_at_close"`

	// Journal / Storage
	JournalWriteSuccess int64 `json:"journal_write_success"`
	JournalWriteFailure int64 `json:"journal_write_failure"`

	// Adapter
	AdapterPublishFailure int64 `json:"adapter_publish_failure"`

	// Dimensions (informational, set at construction)
	Session        string `json:"session"`
	JournalBackend string `json:"journal_backend,omitempty"`
}

// Collector accumulates counters for one session.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex
	s  Snapshot
}

// NewCollector creates a Collector with dimension labels.
// journalBackend is "" when no journal is configured.
func NewCollector(session, journalBackend string) *Collector {
	return &Collector{s: Snapshot{Session: session, JournalBackend: journalBackend}}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Wire ---

// IncChunksRead records a chunk decoded from a stream.
func (c *Collector) IncChunksRead() {
	if c == nil {
		return
	}
	c.add(&c.s.ChunksRead, 1)
}

// AddChunksWritten records n chunks written to a stream.
func (c *Collector) AddChunksWritten(n int) {
	if c == nil {
		return
	}
	c.add(&c.s.ChunksWritten, int64(n))
}

// IncFramingErrors records a stream-fatal framing error.
func (c *Collector) IncFramingErrors() {
	if c == nil {
		return
	}
	c.add(&c.s.FramingErrors, 1)
}

// IncProtocolErrors records a message-fatal protocol error.
func (c *Collector) IncProtocolErrors() {
	if c == nil {
		return
	}
	c.add(&c.s.ProtocolErrors, 1)
}

// --- Messages ---

// RecordMessageAssembled records a completed message of n payload bytes.
func (c *Collector) RecordMessageAssembled(n uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.MessagesAssembled++
	c.s.BytesAssembled += int64(n)
	c.mu.Unlock()
}

// IncMessagesSent records a message fully written by a sender.
func (c *Collector) IncMessagesSent() {
	if c == nil {
		return
	}
	c.add(&c.s.MessagesSent, 1)
}

// AddEntriesEvicted records n partial messages dropped by eviction.
func (c *Collector) AddEntriesEvicted(n int) {
	if c == nil || n == 0 {
		return
	}
	c.add(&c.s.EntriesEvicted, int64(n))
}

// --- Journal / Storage ---
// Journal counters are per-call, not per-record. A WriteMessages call
// with N records counts as 1 success.

// IncJournalWriteSuccess records a successful journal write (per-call).
func (c *Collector) IncJournalWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.s.JournalWriteSuccess, 1)
}

// IncJournalWriteFailure records a failed journal write (per-call).
func (c *Collector) IncJournalWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.s.JournalWriteFailure, 1)
}

// IncAdapterPublishFailure records an event the adapter could not deliver
// after its retries.
func (c *Collector) IncAdapterPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.s.AdapterPublishFailure, 1)
}

// AbsorbPending copies the reassembly table size at session close.
// Later calls overwrite earlier ones.
func (c *Collector) AbsorbPending(entries int, bytes uint64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.s.PendingAtClose = int64(entries)
	c.s.PendingBytesAtClose = int64(bytes)
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.s
}
