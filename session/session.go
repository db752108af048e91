// Package session drives chunk streams through a reassembler.
//
// A Session owns one reassembly table. Serve reads a single stream into it;
// ServeAll feeds several streams into the same table concurrently, which is
// how a peer that spreads one message id over multiple connections is
// handled.
//
// Error handling follows the wire taxonomy:
//   - Framing errors end the stream (no resync is possible)
//   - Protocol errors discard the affected message and the stream continues
//   - Handler errors end the stream
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justapithecus/vst/assembly"
	"github.com/justapithecus/vst/log"
	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/policy"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

// DefaultSweepInterval is the number of chunks between eviction sweeps.
const DefaultSweepInterval = 256

// Handler receives each completed message. Calls are serialized.
type Handler func(ctx context.Context, msg *vst.Message) error

// Config configures a Session.
type Config struct {
	// Meta identifies the session in logs and metrics. Defaults to an unnamed session.
	Meta *types.SessionMeta
	// Handler is called for every completed message (required).
	Handler Handler
	// Logger defaults to a no-op logger.
	Logger *log.Logger
	// Collector may be nil.
	Collector *metrics.Collector
	// Eviction bounds the reassembly table. The zero value never evicts.
	Eviction policy.Eviction
	// SweepInterval is the number of chunks between eviction sweeps.
	// Zero means DefaultSweepInterval.
	SweepInterval int
	// MaxChunkLength bounds the chunk length field. Zero means vst.MaxChunkLength.
	MaxChunkLength uint32
	// MaxMessageLength bounds the declared message length. Zero means unbounded.
	MaxMessageLength uint64
	// Clock overrides time.Now for the reassembler.
	Clock func() time.Time
}

// Session reassembles messages from one or more chunk streams.
type Session struct {
	meta           *types.SessionMeta
	reassembler    *assembly.Reassembler
	eviction       policy.Eviction
	sweepInterval  int64
	maxChunkLength uint32
	logger         *log.Logger
	collector      *metrics.Collector

	handlerMu sync.Mutex
	handler   Handler

	chunks atomic.Int64
}

// New creates a session.
func New(cfg Config) (*Session, error) {
	if cfg.Handler == nil {
		return nil, errors.New("session: handler is required")
	}
	meta := cfg.Meta
	if meta == nil {
		meta = &types.SessionMeta{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	sweep := cfg.SweepInterval
	if sweep < 0 {
		return nil, fmt.Errorf("session: sweep interval must be >= 0, got %d", sweep)
	}
	if sweep == 0 {
		sweep = DefaultSweepInterval
	}
	maxChunk := cfg.MaxChunkLength
	if maxChunk == 0 {
		maxChunk = vst.MaxChunkLength
	}

	var opts []assembly.Option
	if cfg.Clock != nil {
		opts = append(opts, assembly.WithClock(cfg.Clock))
	}
	if cfg.MaxMessageLength > 0 {
		opts = append(opts, assembly.WithMaxMessageLength(cfg.MaxMessageLength))
	}

	return &Session{
		meta:           meta,
		reassembler:    assembly.New(opts...),
		eviction:       cfg.Eviction,
		sweepInterval:  int64(sweep),
		maxChunkLength: maxChunk,
		logger:         logger,
		collector:      cfg.Collector,
		handler:        cfg.Handler,
	}, nil
}

// Meta returns the session identity.
func (s *Session) Meta() *types.SessionMeta {
	return s.meta
}

// Collector returns the session's metrics collector (may be nil).
func (s *Session) Collector() *metrics.Collector {
	return s.collector
}

// Pending returns the in-flight messages, oldest first.
func (s *Session) Pending() []assembly.EntryInfo {
	return s.reassembler.Pending()
}

// Serve reads chunks from r until EOF or a fatal error.
// Returns:
//   - nil: stream ended cleanly (EOF on a chunk boundary)
//   - *Error with Kind=ErrorStream: framing or read error
//   - *Error with Kind=ErrorHandler: handler failure
//   - *Error with Kind=ErrorCanceled: context canceled
//
// Messages left incomplete at EOF stay in the table for other streams
// or a later Serve call.
func (s *Session) Serve(ctx context.Context, r io.Reader) error {
	return s.serve(ctx, 0, r)
}

// ServeAll serves every reader concurrently into the shared table.
// The first fatal error cancels the remaining streams and is returned.
// A stream blocked in Read observes cancellation after its next chunk.
func (s *Session) ServeAll(ctx context.Context, readers ...io.Reader) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range readers {
		g.Go(func() error {
			return s.serve(gctx, i, r)
		})
	}
	return g.Wait()
}

func (s *Session) serve(ctx context.Context, stream int, r io.Reader) error {
	reader := vst.NewChunkReaderSize(r, s.maxChunkLength)
	for {
		select {
		case <-ctx.Done():
			return &Error{Kind: ErrorCanceled, Stream: stream, Err: ctx.Err()}
		default:
		}

		chunk, err := reader.ReadChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Debug("stream ended", map[string]any{"stream": stream})
				return nil
			}
			return s.streamError(stream, err)
		}
		s.collector.IncChunksRead()

		if err := s.accept(ctx, stream, chunk); err != nil {
			return err
		}

		if n := s.chunks.Add(1); n%s.sweepInterval == 0 {
			s.Sweep()
		}
	}
}

// accept hands one chunk to the reassembler and the handler.
func (s *Session) accept(ctx context.Context, stream int, chunk *vst.Chunk) error {
	msg, err := s.reassembler.Accept(chunk)
	if err != nil {
		if vst.IsProtocolError(err) {
			s.logger.Warn("message discarded", map[string]any{
				"stream":     stream,
				"message_id": chunk.MessageID,
				"error":      err.Error(),
			})
			s.collector.IncProtocolErrors()
			return nil
		}
		return s.streamError(stream, err)
	}
	if msg == nil {
		return nil
	}

	s.collector.RecordMessageAssembled(msg.Length)
	s.logger.Debug("message assembled", map[string]any{
		"stream":         stream,
		"message_id":     msg.ID,
		"message_length": msg.Length,
		"chunks":         msg.Chunks,
	})

	s.handlerMu.Lock()
	err = s.handler(ctx, msg)
	s.handlerMu.Unlock()
	if err != nil {
		s.logger.Error("handler failed", map[string]any{
			"stream":     stream,
			"message_id": msg.ID,
			"error":      err.Error(),
		})
		return &Error{
			Kind:   ErrorHandler,
			Stream: stream,
			Err:    fmt.Errorf("handle message %d: %w", msg.ID, err),
		}
	}
	return nil
}

func (s *Session) streamError(stream int, err error) error {
	s.logger.Error("stream error", map[string]any{
		"stream": stream,
		"error":  err.Error(),
	})
	if vst.IsFramingError(err) {
		s.collector.IncFramingErrors()
	}
	return &Error{
		Kind:   ErrorStream,
		Stream: stream,
		Err:    fmt.Errorf("stream %d: %w", stream, err),
	}
}

// Sweep applies the eviction policy now and returns the evicted ids.
func (s *Session) Sweep() []uint64 {
	evicted := s.eviction.Sweep(s.reassembler)
	if len(evicted) > 0 {
		s.collector.AddEntriesEvicted(len(evicted))
		s.logger.Warn("evicted incomplete messages", map[string]any{
			"message_ids": evicted,
		})
	}
	return evicted
}

// Close records the incomplete messages still held and returns them.
// The session remains usable.
func (s *Session) Close() []assembly.EntryInfo {
	pending := s.reassembler.Pending()
	s.collector.AbsorbPending(len(pending), s.reassembler.PendingBytes())
	if len(pending) > 0 {
		s.logger.Warn("incomplete messages at close", map[string]any{
			"count": len(pending),
			"bytes": s.reassembler.PendingBytes(),
		})
	}
	return pending
}
