package geolocator

import (
	"sync"

	"github.com/go-drift/geolocator/pkg/errors"
)

// Feed is a multi-subscriber event source. Handlers are called in
// subscription order on the goroutine that publishes; a panicking handler is
// recovered and reported without affecting the others.
type Feed[T any] struct {
	op       string
	mu       sync.Mutex
	nextID   uint64
	handlers []feedHandler[T]
}

type feedHandler[T any] struct {
	id uint64
	fn func(T)
}

func newFeed[T any](op string) *Feed[T] {
	return &Feed[T]{op: op}
}

// Listen subscribes handler and returns a function that unsubscribes it.
// Calling the returned function more than once is harmless.
func (f *Feed[T]) Listen(handler func(T)) (unsubscribe func()) {
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.handlers = append(f.handlers, feedHandler[T]{id: id, fn: handler})
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, h := range f.handlers {
			if h.id == id {
				f.handlers = append(f.handlers[:i], f.handlers[i+1:]...)
				return
			}
		}
	}
}

func (f *Feed[T]) emit(v T) {
	f.mu.Lock()
	handlers := make([]feedHandler[T], len(f.handlers))
	copy(handlers, f.handlers)
	f.mu.Unlock()

	for _, h := range handlers {
		f.call(h.fn, v)
	}
}

func (f *Feed[T]) call(fn func(T), v T) {
	defer errors.Recover(f.op)
	fn(v)
}
