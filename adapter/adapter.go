// Package adapter defines the event-bus adapter boundary.
//
// Adapters notify downstream systems that a message finished reassembly.
// Events carry message metadata only; payloads stay in the journal.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/vst/log"
	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

// EventTypeMessageAssembled is the event_type of MessageAssembledEvent.
const EventTypeMessageAssembled = "message_assembled"

// DefaultBackoff is the delay before the first retry; it doubles per retry.
const DefaultBackoff = 500 * time.Millisecond

// MessageAssembledEvent is the payload published when a message completes.
type MessageAssembledEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "message_assembled"
	Session         string `json:"session"`
	MessageID       uint64 `json:"message_id"`
	MessageLength   uint64 `json:"message_length"`
	ChunkCount      uint32 `json:"chunk_count"`
	Timestamp       string `json:"timestamp"` // RFC 3339
}

// NewMessageAssembledEvent builds the event for msg completed at t.
func NewMessageAssembledEvent(session string, msg *vst.Message, t time.Time) *MessageAssembledEvent {
	return &MessageAssembledEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventTypeMessageAssembled,
		Session:         session,
		MessageID:       msg.ID,
		MessageLength:   msg.Length,
		ChunkCount:      msg.Chunks,
		Timestamp:       t.UTC().Format(time.RFC3339Nano),
	}
}

// Adapter publishes message events to a downstream system.
type Adapter interface {
	// Publish sends an event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *MessageAssembledEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retry calls attempt up to 1+retries times with exponential backoff
// starting at backoff. It stops early when attempt succeeds, when ctx ends,
// or when permanent reports the error as not worth retrying.
func Retry(ctx context.Context, retries int, backoff time.Duration, permanent func(error) bool, attempt func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		// Backoff before retries, not before the first attempt
		if i > 0 {
			delay := backoff << uint(i-1)
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// Notifier publishes an event for every assembled message.
// Delivery is best effort: failures are logged and counted, never returned,
// so a dead event bus does not stop reassembly.
type Notifier struct {
	adapter   Adapter
	session   string
	logger    *log.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// NewNotifier creates a notifier. logger and collector may be nil.
func NewNotifier(a Adapter, session string, logger *log.Logger, collector *metrics.Collector) *Notifier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Notifier{adapter: a, session: session, logger: logger, collector: collector, now: time.Now}
}

// Handle publishes the event for msg. Its signature fits session.Handler.
func (n *Notifier) Handle(ctx context.Context, msg *vst.Message) error {
	event := NewMessageAssembledEvent(n.session, msg, n.now())
	if err := n.adapter.Publish(ctx, event); err != nil {
		n.collector.IncAdapterPublishFailure()
		n.logger.Warn("adapter publish failed", map[string]any{
			"message_id": msg.ID,
			"error":      err.Error(),
		})
	}
	return nil
}

// Close closes the adapter.
func (n *Notifier) Close() error {
	return n.adapter.Close()
}
