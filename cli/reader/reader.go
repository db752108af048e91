package reader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/lode/lode"

	"github.com/justapithecus/vst/journal"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

// InspectStream lists every chunk header in r without reassembling.
//
// A framing error ends the listing; the chunks read so far are returned
// with Error set. Other read errors are returned as is.
func InspectStream(r io.Reader, source string, maxChunkLength uint32) (*StreamInspection, error) {
	cr := vst.NewChunkReaderSize(r, maxChunkLength)
	out := &StreamInspection{Source: source, Chunks: []ChunkRow{}}
	ids := make(map[uint64]struct{})

	for {
		c, err := cr.ReadChunk()
		if errors.Is(err, io.EOF) {
			break
		}
		if vst.IsFramingError(err) {
			out.Error = err.Error()
			break
		}
		if err != nil {
			return nil, err
		}

		d := c.Descriptor
		number := d.Position()
		if d.IsFirst() {
			number = d.Total()
		}
		out.Chunks = append(out.Chunks, ChunkRow{
			Index:         len(out.Chunks),
			Offset:        out.Bytes,
			Length:        c.Length,
			MessageID:     c.MessageID,
			First:         d.IsFirst(),
			Number:        number,
			MessageLength: c.MessageLength,
			Payload:       len(c.Data),
		})
		ids[c.MessageID] = struct{}{}
		out.Bytes += int64(c.Length)
	}

	out.Messages = len(ids)
	return out, nil
}

// ListJournal returns the journaled messages of ds, optionally filtered by session.
func ListJournal(ctx context.Context, ds lode.Dataset, session string) ([]JournalEntry, error) {
	records, err := journal.ReadMessages(ctx, ds, session)
	if err != nil {
		return nil, err
	}
	entries := make([]JournalEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, JournalEntry{
			Session:       r.Session,
			Day:           r.Day,
			MessageID:     r.MessageID,
			MessageLength: r.MessageLength,
			ChunkCount:    r.ChunkCount,
			ReceivedAt:    r.ReceivedAt,
		})
	}
	return entries, nil
}

// DecodeRequest decodes msg as a request envelope.
func DecodeRequest(msg *vst.Message) (*DecodedRequest, error) {
	req, err := types.DecodeRequestEnvelope(msg.Data)
	if err != nil {
		return nil, fmt.Errorf("message %d: %w", msg.ID, err)
	}
	return &DecodedRequest{
		MessageID:   msg.ID,
		Version:     req.Version,
		MessageType: req.MessageType.String(),
		Database:    req.Database,
		RequestType: req.RequestType.String(),
		RequestPath: req.RequestPath,
		Parameters:  req.Parameters,
		Meta:        req.Meta,
	}, nil
}
