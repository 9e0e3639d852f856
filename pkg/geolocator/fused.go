package geolocator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-drift/geolocator/pkg/errors"
	"github.com/go-drift/geolocator/pkg/platform"
)

// Channel names used by the native fused location provider plugin.
const (
	FusedMethodChannel   = "drift/location/fused"
	FusedCallbackChannel = "drift/location/fused/callbacks"
)

// Callback event types sent on FusedCallbackChannel.
const (
	callbackEventResult       = "result"
	callbackEventAvailability = "availability"
)

var (
	fusedChannelsOnce sync.Once
	fusedMethods      *platform.MethodChannel
	fusedCallbacks    *platform.EventChannel

	// callbackIDs are unique per process so several clients can share the
	// callback channel.
	nextCallbackID atomic.Int64
)

func fusedChannels() (*platform.MethodChannel, *platform.EventChannel) {
	fusedChannelsOnce.Do(func() {
		fusedMethods = platform.NewMethodChannel(FusedMethodChannel)
		fusedCallbacks = platform.NewEventChannel(FusedCallbackChannel)
	})
	return fusedMethods, fusedCallbacks
}

// nativeLocation is a location as encoded by the native plugin.
type nativeLocation struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Altitude         float64 `json:"altitude"`
	Accuracy         float64 `json:"accuracy"`
	VerticalAccuracy float64 `json:"verticalAccuracy"`
	Bearing          float64 `json:"bearing"`
	Speed            float64 `json:"speed"`
	TimeMs           int64   `json:"time"`
	IsMock           bool    `json:"isMock"`
}

func (l nativeLocation) toPosition() Position {
	return Position{
		Latitude:         l.Latitude,
		Longitude:        l.Longitude,
		Altitude:         l.Altitude,
		Accuracy:         l.Accuracy,
		AltitudeAccuracy: l.VerticalAccuracy,
		Heading:          l.Bearing,
		Speed:            l.Speed,
		Timestamp:        time.UnixMilli(l.TimeMs),
		IsMocked:         l.IsMock,
	}
}

// callbackEvent is one native callback invocation routed by callback id.
type callbackEvent struct {
	CallbackID int64            `json:"callbackId"`
	Type       string           `json:"type"`
	Locations  []nativeLocation `json:"locations"`
	Available  bool             `json:"available"`
}

func parseCallbackEvent(data any) (callbackEvent, error) {
	var ev callbackEvent
	if _, ok := data.(map[string]any); !ok {
		return ev, &errors.ParseError{Channel: FusedCallbackChannel, DataType: "CallbackEvent", Got: data}
	}
	if err := platform.DecodeInto(data, &ev); err != nil {
		return ev, err
	}
	if ev.CallbackID == 0 {
		return ev, &errors.ParseError{Channel: FusedCallbackChannel, DataType: "CallbackEvent", Got: data}
	}
	return ev, nil
}

type registration struct {
	callback Callback
	dispatch Dispatcher
}

// FusedClient is a NativeClient backed by the fused location provider plugin
// over platform channels.
type FusedClient struct {
	channel *platform.MethodChannel
	events  *platform.Stream[callbackEvent]

	// subMu orders registration changes with subscribing and unsubscribing;
	// route never takes it, so a bridge may deliver events synchronously.
	subMu       sync.Mutex
	unsubscribe func()

	mu            sync.Mutex
	registrations map[int64]registration
	ids           map[Callback]int64
}

// NewFusedClient creates a client. Most code should use the process-wide
// instance behind Current instead.
func NewFusedClient() *FusedClient {
	methods, callbacks := fusedChannels()
	return &FusedClient{
		channel:       methods,
		events:        platform.NewStream(callbacks, parseCallbackEvent),
		registrations: make(map[int64]registration),
		ids:           make(map[Callback]int64),
	}
}

// RequestLocationUpdates registers cb with the native provider. Registering a
// callback again replaces its request.
func (f *FusedClient) RequestLocationUpdates(ctx context.Context, req NativeRequest, cb Callback, dispatch Dispatcher) error {
	if dispatch == nil {
		dispatch = inline
	}

	f.subMu.Lock()
	f.mu.Lock()
	id, existing := f.ids[cb]
	if !existing {
		id = nextCallbackID.Add(1)
		f.ids[cb] = id
	}
	f.registrations[id] = registration{callback: cb, dispatch: dispatch}
	f.mu.Unlock()
	if f.unsubscribe == nil {
		f.unsubscribe = f.events.Listen(f.route)
	}
	f.subMu.Unlock()

	_, err := f.channel.InvokeContext(ctx, "requestLocationUpdates", map[string]any{
		"callbackId":           id,
		"priority":             int(req.Priority),
		"intervalMs":           req.Interval.Milliseconds(),
		"fastestIntervalMs":    req.FastestInterval.Milliseconds(),
		"smallestDisplacement": req.SmallestDisplacement,
		"maxWaitTimeMs":        req.MaxWaitTime.Milliseconds(),
	})
	if err != nil {
		if !existing {
			f.forget(cb)
		}
		return f.wrap("fused.requestLocationUpdates", err)
	}
	return nil
}

// RemoveLocationUpdates unregisters cb. Callbacks already queued on the
// dispatcher may still run afterwards.
func (f *FusedClient) RemoveLocationUpdates(ctx context.Context, cb Callback) error {
	id, ok := f.forget(cb)
	if !ok {
		return nil
	}
	_, err := f.channel.InvokeContext(ctx, "removeLocationUpdates", map[string]any{
		"callbackId": id,
	})
	return f.wrap("fused.removeLocationUpdates", err)
}

// LastLocation returns the provider's cached location, or nil if it has none.
func (f *FusedClient) LastLocation(ctx context.Context) (*Position, error) {
	result, err := f.channel.InvokeContext(ctx, "getLastLocation", nil)
	if err != nil {
		return nil, f.wrap("fused.getLastLocation", err)
	}
	if result == nil {
		return nil, nil
	}
	var loc nativeLocation
	if err := platform.DecodeInto(result, &loc); err != nil {
		return nil, f.wrap("fused.getLastLocation", &errors.ParseError{Channel: FusedMethodChannel, DataType: "Location", Got: result})
	}
	pos := loc.toPosition()
	return &pos, nil
}

// LocationAvailability reports the provider's availability, or nil when unknown.
func (f *FusedClient) LocationAvailability(ctx context.Context) (*bool, error) {
	result, err := f.channel.InvokeContext(ctx, "getLocationAvailability", nil)
	if err != nil {
		return nil, f.wrap("fused.getLocationAvailability", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		return nil, nil
	}
	available, ok := m["available"].(bool)
	if !ok {
		return nil, nil
	}
	return &available, nil
}

// ServiceAvailable reports whether the provider (Play Services) is present.
func (f *FusedClient) ServiceAvailable(ctx context.Context) (bool, error) {
	result, err := f.channel.InvokeContext(ctx, "isServiceAvailable", nil)
	if err != nil {
		return false, f.wrap("fused.isServiceAvailable", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		return false, nil
	}
	available, _ := m["available"].(bool)
	return available, nil
}

// forget drops cb's registration and unsubscribes from the callback channel
// once nothing is registered.
func (f *FusedClient) forget(cb Callback) (int64, bool) {
	f.subMu.Lock()
	defer f.subMu.Unlock()

	f.mu.Lock()
	id, ok := f.ids[cb]
	if ok {
		delete(f.ids, cb)
		delete(f.registrations, id)
	}
	empty := len(f.registrations) == 0
	f.mu.Unlock()

	if empty && f.unsubscribe != nil {
		f.unsubscribe()
		f.unsubscribe = nil
	}
	return id, ok
}

func (f *FusedClient) route(ev callbackEvent) {
	f.mu.Lock()
	reg, ok := f.registrations[ev.CallbackID]
	f.mu.Unlock()
	if !ok {
		return
	}

	switch ev.Type {
	case callbackEventResult:
		result := LocationResult{Locations: make([]Position, len(ev.Locations))}
		for i, loc := range ev.Locations {
			result.Locations[i] = loc.toPosition()
		}
		reg.dispatch(func() { reg.callback.OnLocationResult(result) })
	case callbackEventAvailability:
		available := ev.Available
		reg.dispatch(func() { reg.callback.OnLocationAvailability(available) })
	default:
		errors.Report(&errors.Error{
			Op:      "fused.route",
			Kind:    errors.KindParsing,
			Channel: FusedCallbackChannel,
			Err:     fmt.Errorf("unknown callback event type %q", ev.Type),
		})
	}
}

func (f *FusedClient) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	e := nativeError(op, err).(*errors.Error)
	e.Channel = FusedMethodChannel
	return e
}
