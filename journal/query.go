package journal

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"
)

// NewReadDataset opens a journal dataset for reading.
// Uses the same codec and layout as the write path.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// NewReadDatasetFS opens a journal dataset with filesystem storage.
func NewReadDatasetFS(dataset, root string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(root))
}

// ReadMessages returns every message record in ds, oldest snapshot first.
// A non-empty session filters by the session partition.
func ReadMessages(ctx context.Context, ds lode.Dataset, session string) ([]*Record, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, string(ds.ID())+"/snapshots")
	}

	var out []*Record
	for _, snap := range snapshots {
		if !snapshotMatches(snap, "session", session) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", ds.ID(), snap.ID))
		}
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindMessage {
				continue
			}
			// Manifest paths are a coarse pre-filter; record fields are authoritative.
			if session != "" && m["session"] != session {
				continue
			}
			r, err := fromRecordMap(m)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// snapshotMatches checks whether any file in snap lies under key=value.
// Segments are matched whole so session=a does not match session=ab.
func snapshotMatches(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	segment := key + "=" + value
	for _, f := range snap.Manifest.Files {
		if slices.Contains(strings.Split(f.Path, "/"), segment) {
			return true
		}
	}
	return false
}

// fromRecordMap decodes a record read back through the JSONL codec.
func fromRecordMap(m map[string]any) (*Record, error) {
	r := &Record{
		RecordKind: RecordKindMessage,
		Session:    asString(m["session"]),
		Day:        asString(m["day"]),
	}

	var err error
	if r.MessageID, err = asUint64(m["message_id"]); err != nil {
		return nil, fmt.Errorf("message_id: %w", err)
	}
	if r.MessageLength, err = asUint64(m["message_length"]); err != nil {
		return nil, fmt.Errorf("message_length: %w", err)
	}
	count, err := asUint64(m["chunk_count"])
	if err != nil {
		return nil, fmt.Errorf("chunk_count: %w", err)
	}
	r.ChunkCount = uint32(count)

	if ts := asString(m["received_at"]); ts != "" {
		if r.ReceivedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("received_at: %w", err)
		}
	}

	switch v := m["data"].(type) {
	case []byte:
		r.Data = v
	case string:
		if r.Data, err = base64.StdEncoding.DecodeString(v); err != nil {
			return nil, fmt.Errorf("data: %w", err)
		}
	case nil:
	default:
		return nil, fmt.Errorf("data: unexpected type %T", v)
	}
	return r, nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// maxExactFloat is the largest integer a float64 holds exactly.
const maxExactFloat = 1 << 53

// asUint64 accepts the numeric shapes a JSON decoder may produce.
func asUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case int:
		return uint64(n), nil
	case float64:
		if n < 0 || n > maxExactFloat || n != math.Trunc(n) {
			return 0, fmt.Errorf("number %v is not an exact integer", n)
		}
		return uint64(n), nil
	case json.Number:
		return strconv.ParseUint(n.String(), 10, 64)
	case string:
		return strconv.ParseUint(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
