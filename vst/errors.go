package vst

import (
	"errors"
	"fmt"
)

// ErrorKind classifies wire errors.
type ErrorKind int

const (
	// KindFraming indicates a malformed chunk header or a length/payload mismatch.
	KindFraming ErrorKind = iota
	// KindProtocol indicates conflicting chunk metadata for one logical message.
	KindProtocol
	// KindInvalidInput indicates caller misuse (zero message id, zero chunk size).
	KindInvalidInput
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindFraming:
		return "framing"
	case KindProtocol:
		return "protocol"
	case KindInvalidInput:
		return "invalid_input"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrFraming      = errors.New("vst: framing error")
	ErrProtocol     = errors.New("vst: protocol error")
	ErrInvalidInput = errors.New("vst: invalid input")
)

// Error is a wire-level error.
type Error struct {
	Kind ErrorKind
	// MessageID is the logical message the error belongs to, 0 when unknown.
	MessageID uint64
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.MessageID != 0 {
		msg = fmt.Sprintf("message %d: %s", e.MessageID, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrFraming:
		return e.Kind == KindFraming
	case ErrProtocol:
		return e.Kind == KindProtocol
	case ErrInvalidInput:
		return e.Kind == KindInvalidInput
	}
	return false
}

// IsFatal returns true if the error is fatal to the connection.
// Framing errors leave the stream at an unknown offset, so there is no resync.
func (e *Error) IsFatal() bool {
	return e.Kind == KindFraming
}

// IsFramingError returns true if err is a framing error.
func IsFramingError(err error) bool { return errors.Is(err, ErrFraming) }

// IsProtocolError returns true if err is a protocol error.
func IsProtocolError(err error) bool { return errors.Is(err, ErrProtocol) }

// IsInvalidInput returns true if err reports caller misuse.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

func framingError(format string, args ...any) *Error {
	return &Error{Kind: KindFraming, Msg: fmt.Sprintf(format, args...)}
}

// ProtocolError builds a protocol error for messageID.
func ProtocolError(messageID uint64, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, MessageID: messageID, Msg: fmt.Sprintf(format, args...)}
}

func invalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}
