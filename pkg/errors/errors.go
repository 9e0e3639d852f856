// Package errors provides structured error handling for the geolocator packages.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindPlatform indicates a platform channel or native bridge error.
	KindPlatform
	// KindParsing indicates an event parsing failure.
	KindParsing
	// KindUnauthorized indicates location permission was not granted.
	KindUnauthorized
	// KindPositionUnavailable indicates the native service has no location to offer
	// or is itself unavailable.
	KindPositionUnavailable
	// KindNotSupported indicates the operation is not implemented by the backend.
	KindNotSupported
	// KindTimeout indicates a caller-supplied deadline elapsed.
	KindTimeout
	// KindCanceled indicates the caller canceled the operation.
	KindCanceled
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindParsing:
		return "parsing"
	case KindUnauthorized:
		return "unauthorized"
	case KindPositionUnavailable:
		return "position_unavailable"
	case KindNotSupported:
		return "not_supported"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Error represents a structured geolocation error.
type Error struct {
	// Op is the operation that failed (e.g., "geolocator.StartListening").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Err is the underlying error.
	Err error
	// Channel is the platform channel name, if applicable.
	Channel string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *Error) Error() string {
	op := e.Op
	if op == "" {
		op = "geolocation"
	}
	if e.Err == nil {
		if e.Channel != "" {
			return fmt.Sprintf("%s [%s] channel=%s", op, e.Kind, e.Channel)
		}
		return fmt.Sprintf("%s [%s]", op, e.Kind)
	}
	if e.Channel != "" {
		return fmt.Sprintf("%s [%s] channel=%s: %v", op, e.Kind, e.Channel, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare kind sentinel such as ErrUnauthorized
// with the same Kind as e.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Op != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind
}

// Kind sentinels for use with errors.Is.
var (
	ErrUnauthorized        = &Error{Kind: KindUnauthorized}
	ErrPositionUnavailable = &Error{Kind: KindPositionUnavailable}
	ErrNotSupported        = &Error{Kind: KindNotSupported}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrCanceled            = &Error{Kind: KindCanceled}
)

// New returns an Error for op with the given kind and cause.
func New(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err, Timestamp: time.Now()}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "geolocator.positionChanged").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ParseError represents a failure to parse event data.
type ParseError struct {
	// Channel is the platform channel that received the event.
	Channel string
	// DataType is the expected type name.
	DataType string
	// Got is the actual data received.
	Got any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s from channel %s: got %T", e.DataType, e.Channel, e.Got)
}

// ErrorHandler receives errors reported in the background, outside the call
// stack of any pending operation.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *Error)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
