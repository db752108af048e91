package journal

import (
	"errors"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o" }
func (timeoutError) Timeout() bool { return true }

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		wantKind error
	}{
		{"context deadline exceeded", "context deadline exceeded", ErrTimeout},
		{"timeout in message", "connection timeout after 30s", ErrTimeout},
		{"AccessDenied response", "AccessDenied: you do not have access", ErrAccessDenied},
		{"HTTP 403", "received status 403", ErrAccessDenied},
		{"permission denied", "open /data/vst: permission denied", ErrPermissionDenied},
		{"ENOENT", "ENOENT: no such file", ErrNotFound},
		{"NoSuchBucket", "api error NoSuchBucket", ErrNotFound},
		{"no space left", "write /data: no space left on device", ErrDiskFull},
		{"SlowDown", "api error SlowDown: reduce your request rate", ErrThrottled},
		{"no credentials", "NoCredentialProviders: no valid providers in chain", ErrAuth},
		{"connection refused", "dial tcp 127.0.0.1:9000: connect: connection refused", ErrNetwork},
		{"unknown", "something odd happened", ErrUnclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(errors.New(tt.errMsg))
			if got != tt.wantKind {
				t.Errorf("classifyError(%q) = %v, want %v", tt.errMsg, got, tt.wantKind)
			}
		})
	}
}

func TestClassifyError_TimeoutInterface(t *testing.T) {
	if got := classifyError(timeoutError{}); got != ErrTimeout {
		t.Errorf("classifyError(timeoutError) = %v, want %v", got, ErrTimeout)
	}
}

func TestStorageError_Chain(t *testing.T) {
	cause := errors.New("open /data: permission denied")
	err := WrapWriteError(cause, "vst")

	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("errors.Is(err, ErrPermissionDenied) = false, want true")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatal("errors.As(*StorageError) = false, want true")
	}
	if se.Op != "write" || se.Path != "vst" {
		t.Errorf("StorageError = {Op: %q, Path: %q}, want {write, vst}", se.Op, se.Path)
	}
	if want := "write vst: permission denied: open /data: permission denied"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrap_Nil(t *testing.T) {
	if WrapWriteError(nil, "x") != nil || WrapReadError(nil, "x") != nil || WrapInitError(nil, "x") != nil {
		t.Error("wrapping nil returned non-nil")
	}
}
