package session

import (
	"context"
	"fmt"
	"io"

	"github.com/justapithecus/vst/log"
	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

// Sender writes messages as chunk sequences.
//
// Each chunk goes out in a single Write call, so concurrent sends on a writer
// that serializes Write (a net.Conn, an *os.File) interleave at chunk
// granularity, which receivers accept.
type Sender struct {
	ids             vst.IDSource
	maxChunkPayload int
	logger          *log.Logger
	collector       *metrics.Collector
}

// NewSender creates a sender. ids must never yield 0; vst.Sequence qualifies.
// maxChunkPayload <= 0 means vst.DefaultMaxChunkPayload.
func NewSender(ids vst.IDSource, maxChunkPayload int, logger *log.Logger, collector *metrics.Collector) *Sender {
	if maxChunkPayload <= 0 {
		maxChunkPayload = vst.DefaultMaxChunkPayload
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Sender{
		ids:             ids,
		maxChunkPayload: maxChunkPayload,
		logger:          logger,
		collector:       collector,
	}
}

// Send writes payload under a fresh message id and returns the id.
func (s *Sender) Send(ctx context.Context, w io.Writer, payload []byte) (uint64, error) {
	id := s.ids.NextID()
	if err := s.SendWithID(ctx, w, id, payload); err != nil {
		return 0, err
	}
	return id, nil
}

// SendRequest encodes req and sends it under a fresh message id.
func (s *Sender) SendRequest(ctx context.Context, w io.Writer, req *types.RequestEnvelope) (uint64, error) {
	payload, err := req.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}
	return s.Send(ctx, w, payload)
}

// SendWithID writes payload under a caller-chosen message id.
// Cancellation is checked between chunks; a canceled send leaves a
// partial message on the stream.
func (s *Sender) SendWithID(ctx context.Context, w io.Writer, id uint64, payload []byte) error {
	chunks, err := vst.Split(id, payload, s.maxChunkPayload)
	if err != nil {
		return err
	}

	cw := vst.NewChunkWriter(w)
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			s.collector.AddChunksWritten(i)
			return err
		}
		if err := cw.WriteChunk(c); err != nil {
			s.collector.AddChunksWritten(i)
			s.logger.Error("chunk write failed", map[string]any{
				"message_id": id,
				"chunk":      i,
				"error":      err.Error(),
			})
			return fmt.Errorf("write chunk %d of message %d: %w", i, id, err)
		}
	}

	s.collector.AddChunksWritten(len(chunks))
	s.collector.IncMessagesSent()
	s.logger.Debug("message sent", map[string]any{
		"message_id":     id,
		"message_length": len(payload),
		"chunks":         len(chunks),
	})
	return nil
}
