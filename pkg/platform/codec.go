// Package platform is the bridge between Go and the native location stack.
// Go code calls native location and permission APIs through method channels and
// receives native callbacks (location results, permission changes) through event
// channels. A host installs a NativeBridge to connect both directions.
package platform

import (
	"encoding/json"
	"errors"
)

// MessageCodec turns channel payloads into bytes for the NativeBridge and back.
type MessageCodec interface {
	Encode(value any) ([]byte, error)
	// Decode returns nil for an empty payload, which is how a native method
	// with no result answers.
	Decode(data []byte) (any, error)
}

// JSONCodec is the MessageCodec every location and permission channel uses.
// Numbers decode as float64, so callback ids and timestamps are converted by
// the receiving side.
type JSONCodec struct{}

func (JSONCodec) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (JSONCodec) Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DecodeInto converts a value already decoded by a MessageCodec (typically a
// map[string]any from an event payload) into the typed value pointed to by v.
func DecodeInto(data any, v any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// DefaultCodec is the codec used by platform channels.
var DefaultCodec MessageCodec = JSONCodec{}

var (
	// ErrChannelNotFound is returned for a call on a channel nobody registered.
	ErrChannelNotFound = errors.New("platform channel not found")
	// ErrMethodNotFound is returned when the native side does not know the method.
	ErrMethodNotFound = errors.New("method not implemented")
	// ErrInvalidArguments is returned when a method payload cannot be decoded.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrPlatformUnavailable means no native bridge is installed, as on a
	// desktop build without a simulator.
	ErrPlatformUnavailable = errors.New("platform feature unavailable")
	// ErrTimeout means the context deadline passed before native code answered,
	// or the user left a permission dialog open past its timeout.
	ErrTimeout = errors.New("operation timed out")
	// ErrCanceled means the caller canceled the context.
	ErrCanceled = errors.New("operation was canceled")
	// ErrClosed is returned by a bridge that has been shut down.
	ErrClosed = errors.New("platform: channel closed")
)

// ChannelError is a failure reported by native code, such as the fused
// provider answering "service_unavailable".
type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *ChannelError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewChannelError creates a ChannelError with the given code and message.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}

// ChannelErrorCode returns the native code of the first ChannelError in err's
// chain, or "" when there is none.
func ChannelErrorCode(err error) string {
	var ce *ChannelError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
