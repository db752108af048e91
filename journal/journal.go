// Package journal persists assembled messages to Lode.
//
// Records are written as JSONL into a Hive-partitioned dataset keyed by
// session and day, so one journal can hold many sessions and be pruned by
// date.
package journal

import (
	"context"
	"strconv"
	"time"

	"github.com/justapithecus/vst/vst"
)

// RecordKindMessage is the record_kind discriminator for assembled messages.
const RecordKindMessage = "message"

// DefaultDataset is the Lode dataset ID used when none is configured.
const DefaultDataset = "vst"

// partitionKeys is the Hive layout shared by the read and write paths.
var partitionKeys = []string{"session", "day"}

// DeriveDay computes the partition day for a receive time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Config holds journal configuration.
type Config struct {
	// Dataset is the Lode dataset ID. Empty means DefaultDataset.
	Dataset string
	// Session is the partition key for the producing session.
	Session string
}

func (c Config) dataset() string {
	if c.Dataset == "" {
		return DefaultDataset
	}
	return c.Dataset
}

// Record is the storage format for one assembled message.
type Record struct {
	RecordKind    string    `json:"record_kind"`
	MessageID     uint64    `json:"message_id"`
	MessageLength uint64    `json:"message_length"`
	ChunkCount    uint32    `json:"chunk_count"`
	ReceivedAt    time.Time `json:"received_at"`
	Data          []byte    `json:"data"` // base64 encoded in JSON

	// Partition keys (used by Lode HiveLayout)
	Session string `json:"session"`
	Day     string `json:"day"`
}

// NewRecord builds the record for msg received at t.
func NewRecord(msg *vst.Message, session string, t time.Time) *Record {
	return &Record{
		RecordKind:    RecordKindMessage,
		MessageID:     msg.ID,
		MessageLength: msg.Length,
		ChunkCount:    msg.Chunks,
		ReceivedAt:    t.UTC(),
		Data:          msg.Data,
		Session:       session,
		Day:           DeriveDay(t),
	}
}

// toRecordMap converts a Record to a map for Lode storage.
// Lode HiveLayout requires records as map[string]any.
// 64-bit fields are stored as decimal strings; JSON numbers lose
// precision above 2^53.
func toRecordMap(r *Record) map[string]any {
	return map[string]any{
		"record_kind":    r.RecordKind,
		"message_id":     strconv.FormatUint(r.MessageID, 10),
		"message_length": strconv.FormatUint(r.MessageLength, 10),
		"chunk_count":    r.ChunkCount,
		"received_at":    r.ReceivedAt.Format(time.RFC3339Nano),
		"data":           r.Data,
		"session":        r.Session,
		"day":            r.Day,
	}
}

// Client abstracts journal storage.
type Client interface {
	// WriteMessages writes a batch of records. Ordering within the batch is preserved.
	WriteMessages(ctx context.Context, records []*Record) error

	// Close releases client resources.
	Close() error
}
