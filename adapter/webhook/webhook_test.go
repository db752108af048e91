package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/justapithecus/vst/adapter"
	"github.com/justapithecus/vst/iox"
	"github.com/justapithecus/vst/vst"
)

func testEvent() *adapter.MessageAssembledEvent {
	msg := &vst.Message{ID: 7, Length: 42, Chunks: 3}
	return adapter.NewMessageAssembledEvent("sess-1", msg, time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC))
}

func statusServer(t *testing.T, calls *atomic.Int32, status func(n int32) int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.WriteHeader(status(n))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestPublish_Success(t *testing.T) {
	var received adapter.MessageAssembledEvent
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		if got := r.Header.Get("X-Token"); got != "secret" {
			t.Errorf("X-Token = %q, want secret", got)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("unmarshal: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer ts.Close()

	a, err := New(Config{URL: ts.URL, Headers: map[string]string{"X-Token": "secret"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer iox.DiscardClose(a)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if received.MessageID != 7 || received.EventType != adapter.EventTypeMessageAssembled {
		t.Errorf("received = %+v, want message 7 message_assembled", received)
	}
	if received.Timestamp != "2026-02-07T12:00:00Z" {
		t.Errorf("timestamp = %q, want 2026-02-07T12:00:00Z", received.Timestamp)
	}
}

func TestPublish_RetriesOnFailure(t *testing.T) {
	var calls atomic.Int32
	ts := statusServer(t, &calls, func(n int32) int {
		if n < 3 {
			return http.StatusServiceUnavailable
		}
		return http.StatusOK
	})

	a, err := New(Config{URL: ts.URL, Retries: 3, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestPublish_5xxExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	ts := statusServer(t, &calls, func(int32) int { return http.StatusBadGateway })

	a, err := New(Config{URL: ts.URL, Retries: 2, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = a.Publish(t.Context(), testEvent())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Fatalf("publish error = %v, want StatusError 502", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestPublish_4xxFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	ts := statusServer(t, &calls, func(int32) int { return http.StatusBadRequest })

	a, err := New(Config{URL: ts.URL, Retries: 3, Backoff: time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error on 400")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1 (4xx is not retried)", got)
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	var calls atomic.Int32
	ts := statusServer(t, &calls, func(int32) int { return http.StatusInternalServerError })

	a, err := New(Config{URL: ts.URL, Retries: 5, Backoff: time.Hour})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	err = a.Publish(ctx, testEvent())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("publish error = %v, want context.DeadlineExceeded", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without URL succeeded, want error")
	}
	if _, err := New(Config{URL: "http://localhost", Retries: -1}); err == nil {
		t.Error("New with negative retries succeeded, want error")
	}

	a, err := New(Config{URL: "http://localhost"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}
