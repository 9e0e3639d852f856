package platform

import "github.com/go-drift/geolocator/pkg/errors"

// Stream is a typed view of an EventChannel. Each listener sees every event
// that parses; the native stream runs while at least one listener exists.
type Stream[T any] struct {
	events *EventChannel
	parse  func(data any) (T, error)
}

// NewStream types events with parse. A parse error drops that one event.
func NewStream[T any](events *EventChannel, parse func(data any) (T, error)) *Stream[T] {
	return &Stream[T]{events: events, parse: parse}
}

// Listen calls handler for each parsed event until the returned function is
// called. Malformed events and native stream errors go to errors.Report, not
// to handler.
func (s *Stream[T]) Listen(handler func(T)) (unsubscribe func()) {
	sub := s.events.Listen(EventHandler{
		OnEvent: func(data any) {
			val, err := s.parse(data)
			if err != nil {
				s.report("stream.parse", errors.KindParsing, err)
				return
			}
			handler(val)
		},
		OnError: func(err error) {
			s.report("stream.error", errors.KindPlatform, err)
		},
	})
	return sub.Cancel
}

func (s *Stream[T]) report(op string, kind errors.ErrorKind, err error) {
	errors.Report(&errors.Error{Op: op, Kind: kind, Channel: s.events.Name(), Err: err})
}
