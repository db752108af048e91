package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/justapithecus/vst/metrics"
	"github.com/justapithecus/vst/types"
	"github.com/justapithecus/vst/vst"
)

func TestNewMessageAssembledEvent(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	msg := &vst.Message{ID: 7, Length: 50, Chunks: 3}
	e := NewMessageAssembledEvent("sess-1", msg, time.Date(2026, 2, 7, 13, 0, 0, 0, loc))

	if e.ContractVersion != types.ContractVersion {
		t.Errorf("ContractVersion = %q, want %q", e.ContractVersion, types.ContractVersion)
	}
	if e.EventType != EventTypeMessageAssembled {
		t.Errorf("EventType = %q, want %q", e.EventType, EventTypeMessageAssembled)
	}
	if e.Timestamp != "2026-02-07T12:00:00Z" {
		t.Errorf("Timestamp = %q, want UTC 2026-02-07T12:00:00Z", e.Timestamp)
	}
	if e.MessageID != 7 || e.MessageLength != 50 || e.ChunkCount != 3 || e.Session != "sess-1" {
		t.Errorf("event = %+v", e)
	}
}

func TestRetry(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")

	tests := []struct {
		name      string
		retries   int
		results   []error
		wantCalls int
		wantErr   error
	}{
		{"first attempt succeeds", 3, []error{nil}, 1, nil},
		{"succeeds after retries", 3, []error{errTransient, errTransient, nil}, 3, nil},
		{"exhausts retries", 2, []error{errTransient, errTransient, errTransient}, 3, errTransient},
		{"no retries", 0, []error{errTransient}, 1, errTransient},
		{"permanent error stops", 3, []error{errFatal}, 1, errFatal},
	}

	permanent := func(err error) bool { return errors.Is(err, errFatal) }
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(t.Context(), tt.retries, time.Microsecond, permanent, func(context.Context) error {
				err := tt.results[calls]
				calls++
				return err
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("Retry() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Retry() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, nil, func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
}

type fakeAdapter struct {
	err    error
	events []*MessageAssembledEvent
	closed bool
}

func (f *fakeAdapter) Publish(_ context.Context, e *MessageAssembledEvent) error {
	f.events = append(f.events, e)
	return f.err
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func TestNotifier_Handle(t *testing.T) {
	fake := &fakeAdapter{}
	c := metrics.NewCollector("sess-1", "")
	n := NewNotifier(fake, "sess-1", nil, c)

	if err := n.Handle(t.Context(), &vst.Message{ID: 3, Length: 1, Chunks: 1}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if len(fake.events) != 1 || fake.events[0].MessageID != 3 {
		t.Errorf("events = %+v, want one event for message 3", fake.events)
	}

	// Publish failures are counted, not returned.
	fake.err = errors.New("bus down")
	if err := n.Handle(t.Context(), &vst.Message{ID: 4}); err != nil {
		t.Errorf("Handle with failing adapter = %v, want nil", err)
	}
	if got := c.Snapshot().AdapterPublishFailure; got != 1 {
		t.Errorf("AdapterPublishFailure = %d, want 1", got)
	}

	if err := n.Close(); err != nil || !fake.closed {
		t.Errorf("Close() = %v, closed = %v, want nil, true", err, fake.closed)
	}
}
