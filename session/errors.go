package session

import "errors"

// ErrorKind classifies why a stream stopped.
type ErrorKind int

const (
	// ErrorStream indicates a framing or read error (connection-fatal).
	ErrorStream ErrorKind = iota
	// ErrorHandler indicates the message handler failed.
	ErrorHandler
	// ErrorCanceled indicates context cancellation.
	ErrorCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorStream:
		return "stream"
	case ErrorHandler:
		return "handler"
	case ErrorCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Error is returned by Serve when a stream stops before EOF.
type Error struct {
	Kind ErrorKind
	// Stream is the index of the reader passed to ServeAll, 0 for Serve.
	Stream int
	Err    error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if the error is a framing or read error.
func IsStreamError(err error) bool {
	return hasKind(err, ErrorStream)
}

// IsHandlerError returns true if the message handler failed.
func IsHandlerError(err error) bool {
	return hasKind(err, ErrorHandler)
}

// IsCanceledError returns true if the error is due to context cancellation.
func IsCanceledError(err error) bool {
	return hasKind(err, ErrorCanceled)
}

func hasKind(err error, kind ErrorKind) bool {
	var sessErr *Error
	if errors.As(err, &sessErr) {
		return sessErr.Kind == kind
	}
	return false
}
