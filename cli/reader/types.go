// Package reader provides the read-side data access layer for the vst CLI.
//
// Read-only commands build their payloads here so that table, json, yaml
// and TUI rendering all see the same data.
package reader

import (
	"time"

	"github.com/justapithecus/vst/assembly"
	"github.com/justapithecus/vst/metrics"
)

// ChunkRow is one chunk header as listed by inspect.
type ChunkRow struct {
	Index         int    `json:"index"`
	Offset        int64  `json:"offset"`
	Length        uint32 `json:"length"`
	MessageID     uint64 `json:"message_id"`
	First         bool   `json:"first"`
	Number        uint32 `json:"number"` // total on first chunks, position otherwise
	MessageLength uint64 `json:"message_length"`
	Payload       int    `json:"payload"`
}

// StreamInspection is the inspect payload for one chunk stream.
type StreamInspection struct {
	Source   string     `json:"source"`
	Chunks   []ChunkRow `json:"chunks"`
	Messages int        `json:"messages"` // distinct message ids
	Bytes    int64      `json:"bytes"`
	// Error is set when the stream ended on a framing error.
	Error string `json:"error,omitempty"`
}

// AssembledMessage describes one reassembled message.
type AssembledMessage struct {
	MessageID     uint64 `json:"message_id"`
	MessageLength uint64 `json:"message_length"`
	Chunks        uint32 `json:"chunks"`
	Path          string `json:"path,omitempty"`
}

// AssemblySummary is the assemble payload.
type AssemblySummary struct {
	Session  string               `json:"session"`
	Streams  int                  `json:"streams"`
	Messages []AssembledMessage   `json:"messages"`
	Pending  []assembly.EntryInfo `json:"pending"`
	Metrics  metrics.Snapshot     `json:"metrics"`
	Error    string               `json:"error,omitempty"`
}

// JournalEntry is one journaled message as listed by journal list.
type JournalEntry struct {
	Session       string    `json:"session"`
	Day           string    `json:"day"`
	MessageID     uint64    `json:"message_id"`
	MessageLength uint64    `json:"message_length"`
	ChunkCount    uint32    `json:"chunk_count"`
	ReceivedAt    time.Time `json:"received_at"`
}

// DecodedRequest is one request envelope recovered from a chunk stream.
type DecodedRequest struct {
	MessageID   uint64            `json:"message_id"`
	Version     uint32            `json:"version"`
	MessageType string            `json:"message_type"`
	Database    string            `json:"database"`
	RequestType string            `json:"request_type"`
	RequestPath string            `json:"request_path"`
	Parameters  map[string]string `json:"parameters"`
	Meta        map[string]string `json:"meta"`
}
