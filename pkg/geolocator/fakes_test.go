package geolocator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-drift/geolocator/pkg/platform"
)

// fakeClient is an in-memory NativeClient recording every call in order.
type fakeClient struct {
	mu           sync.Mutex
	calls        []string
	requests     []NativeRequest
	requested    []Callback
	removed      []Callback
	registered   map[Callback]NativeRequest
	requestErr   error
	unavailable  bool
	last         *Position
	availability *bool

	// removeBlock, when set, makes RemoveLocationUpdates hang until closed,
	// ignoring its context like a misbehaving native service.
	removeBlock chan struct{}
	// onRequest runs after a successful registration.
	onRequest func(cb Callback)
}

func newFakeClient() *fakeClient {
	return &fakeClient{registered: make(map[Callback]NativeRequest)}
}

func (f *fakeClient) RequestLocationUpdates(ctx context.Context, req NativeRequest, cb Callback, dispatch Dispatcher) error {
	f.mu.Lock()
	f.calls = append(f.calls, "request")
	if f.requestErr != nil {
		err := f.requestErr
		f.mu.Unlock()
		return err
	}
	f.requests = append(f.requests, req)
	f.requested = append(f.requested, cb)
	f.registered[cb] = req
	hook := f.onRequest
	f.mu.Unlock()

	if hook != nil {
		hook(cb)
	}
	return nil
}

func (f *fakeClient) RemoveLocationUpdates(ctx context.Context, cb Callback) error {
	f.mu.Lock()
	if _, ok := f.registered[cb]; !ok {
		f.mu.Unlock()
		return nil
	}
	f.calls = append(f.calls, "remove")
	f.removed = append(f.removed, cb)
	delete(f.registered, cb)
	block := f.removeBlock
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return nil
}

func (f *fakeClient) LastLocation(ctx context.Context) (*Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, nil
}

func (f *fakeClient) LocationAvailability(ctx context.Context) (*bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.availability, nil
}

func (f *fakeClient) ServiceAvailable(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.unavailable, nil
}

func (f *fakeClient) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) activeRegistrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registered)
}

func (f *fakeClient) removeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.removed)
}

func (f *fakeClient) callback(i int) Callback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requested[i]
}

// fakePermission answers Status and Request with fixed values.
type fakePermission struct {
	mu       sync.Mutex
	status   platform.PermissionStatus
	answer   platform.PermissionStatus
	requests int
}

func grantedPermission() *fakePermission {
	return &fakePermission{status: platform.PermissionGranted, answer: platform.PermissionGranted}
}

func (p *fakePermission) Status(ctx context.Context) (platform.PermissionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status, nil
}

func (p *fakePermission) Request(ctx context.Context) (platform.PermissionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests++
	p.status = p.answer
	return p.answer, nil
}

func fix(lat, lon float64) LocationResult {
	return LocationResult{Locations: []Position{{Latitude: lat, Longitude: lon}}}
}

// recorder collects events from a Controller.
type recorder struct {
	mu           sync.Mutex
	positions    []Position
	errs         []error
	availability []bool
}

func record(c *Controller) *recorder {
	r := &recorder{}
	c.PositionChanged().Listen(func(p Position) {
		r.mu.Lock()
		r.positions = append(r.positions, p)
		r.mu.Unlock()
	})
	c.PositionError().Listen(func(err error) {
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	})
	c.AvailabilityChanged().Listen(func(b bool) {
		r.mu.Lock()
		r.availability = append(r.availability, b)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) Positions() []Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Position(nil), r.positions...)
}

func (r *recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func (r *recorder) Availability() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.availability...)
}

func newTestController(client NativeClient, perm PermissionProvider) *Controller {
	return NewController(client, perm, Options{
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		Dispatcher:      inline,
		TeardownTimeout: 50 * time.Millisecond,
	})
}
