package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/justapithecus/vst/adapter"
	"github.com/justapithecus/vst/iox"
	"github.com/justapithecus/vst/vst"
)

func testEvent() *adapter.MessageAssembledEvent {
	msg := &vst.Message{ID: 42, Length: 50, Chunks: 3}
	return adapter.NewMessageAssembledEvent("sess-1", msg, time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC))
}

// asyncReceive starts a goroutine that reads one message from the subscriber
// and sends it to the returned channel. Must be called BEFORE Publish to avoid
// deadlocking miniredis's synchronous pub/sub delivery.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{} // unreachable
	}
}

func TestPublish_Success(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Retries: 0})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := asyncReceive(sub)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", msg.Channel, DefaultChannel)
	}

	var received adapter.MessageAssembledEvent
	if err := json.Unmarshal([]byte(msg.Message), &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if received.MessageID != 42 {
		t.Errorf("message_id = %d, want 42", received.MessageID)
	}
	if received.EventType != adapter.EventTypeMessageAssembled {
		t.Errorf("event_type = %q, want %q", received.EventType, adapter.EventTypeMessageAssembled)
	}
	if received.ChunkCount != 3 || received.MessageLength != 50 {
		t.Errorf("chunk_count = %d, message_length = %d, want 3, 50", received.ChunkCount, received.MessageLength)
	}
	if received.Session != "sess-1" {
		t.Errorf("session = %q, want sess-1", received.Session)
	}
}

func TestPublish_CustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: "arangodb:vst"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	sub := mr.NewSubscriber()
	sub.Subscribe("arangodb:vst")
	ch := asyncReceive(sub)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if msg := waitMessage(t, ch); msg.Channel != "arangodb:vst" {
		t.Errorf("channel = %q, want arangodb:vst", msg.Channel)
	}
}

func TestPublish_SessionChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: "vst:" + SessionPlaceholder + ":assembled"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	sub := mr.NewSubscriber()
	sub.Subscribe("vst:sess-1:assembled")
	ch := asyncReceive(sub)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if msg := waitMessage(t, ch); msg.Channel != "vst:sess-1:assembled" {
		t.Errorf("channel = %q, want vst:sess-1:assembled", msg.Channel)
	}
}

func TestPublish_ExhaustsRetries(t *testing.T) {
	// Use an address that won't connect
	a, err := New(Config{
		URL:     "redis://127.0.0.1:1",
		Retries: 2,
		Timeout: 100 * time.Millisecond,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	a, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 5, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing URL", Config{}},
		{"invalid URL", Config{URL: "http://not-redis"}},
		{"negative retries", Config{URL: "redis://localhost:6379", Retries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New succeeded, want error")
			}
		})
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	a, err := New(Config{URL: "redis://localhost:6379"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	t.Cleanup(iox.CloseFunc(a))

	if a.config.Channel != DefaultChannel {
		t.Errorf("Channel = %q, want %q", a.config.Channel, DefaultChannel)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
	if a.config.Backoff != adapter.DefaultBackoff {
		t.Errorf("Backoff = %v, want %v", a.config.Backoff, adapter.DefaultBackoff)
	}
}
