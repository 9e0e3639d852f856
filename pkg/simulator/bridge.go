// Package simulator provides a platform.NativeBridge that stands in for the
// native fused location provider and permission plugin. It replays a recorded
// track as location callbacks, which makes the geolocator package usable on
// desktops and in tests without a device.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/paulmach/orb/geo"

	"github.com/go-drift/geolocator/pkg/geolocator"
	"github.com/go-drift/geolocator/pkg/platform"
)

const (
	permissionsChannel       = "drift/permissions"
	permissionChangesChannel = "drift/permissions/changes"
)

// DefaultStep is the replay interval used when a request asks for none.
const DefaultStep = time.Second

// Config configures a Bridge.
type Config struct {
	// Track is replayed by every registration. Required.
	Track Track
	// Permission is the initial status of location permissions.
	// Empty means not_determined.
	Permission platform.PermissionStatus
	// Grant is the answer to a permission request. Empty means granted.
	Grant platform.PermissionStatus
	// ServiceUnavailable makes the bridge behave like a device without
	// Play Services.
	ServiceUnavailable bool
	// Step overrides the request interval when positive.
	Step time.Duration
	// Loop restarts the track instead of ending with an availability loss.
	Loop bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Deliver sends an event to Go. Defaults to platform.HandleEvent.
	Deliver func(channel string, data []byte) error
}

// Bridge implements platform.NativeBridge.
type Bridge struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	permission platform.PermissionStatus
	replays    map[int64]*replay
	last       *fusedLocation
	available  bool
	streams    map[string]bool
	closed     bool
}

type replay struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Bridge.
func New(cfg Config) (*Bridge, error) {
	if len(cfg.Track) == 0 {
		return nil, fmt.Errorf("simulator: empty track")
	}
	if cfg.Permission == "" {
		cfg.Permission = platform.PermissionNotDetermined
	}
	if cfg.Grant == "" {
		cfg.Grant = platform.PermissionGranted
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Deliver == nil {
		cfg.Deliver = platform.HandleEvent
	}
	return &Bridge{
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "simulator"),
		now:        time.Now,
		permission: cfg.Permission,
		replays:    make(map[int64]*replay),
		streams:    make(map[string]bool),
	}, nil
}

// InvokeMethod handles calls on the fused location and permission channels.
func (b *Bridge) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	decoded, err := platform.DefaultCodec.Decode(args)
	if err != nil {
		return nil, platform.ErrInvalidArguments
	}
	m, _ := decoded.(map[string]any)

	var result any
	switch channel {
	case geolocator.FusedMethodChannel:
		result, err = b.fused(method, m)
	case permissionsChannel:
		result, err = b.permissions(method, m)
	default:
		return nil, platform.ErrChannelNotFound
	}
	if err != nil {
		return nil, err
	}
	return platform.DefaultCodec.Encode(result)
}

// StartEventStream records that Go listens on channel.
func (b *Bridge) StartEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return platform.ErrClosed
	}
	b.streams[channel] = true
	b.logger.Debug("event stream started", "channel", channel)
	return nil
}

// StopEventStream records that Go stopped listening on channel.
func (b *Bridge) StopEventStream(channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.streams, channel)
	b.logger.Debug("event stream stopped", "channel", channel)
	return nil
}

// Close stops every replay and waits for them to finish. Later calls fail
// with platform.ErrClosed. It must not be called from a location callback.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	replays := b.replays
	b.replays = make(map[int64]*replay)
	b.mu.Unlock()

	for _, r := range replays {
		r.cancel()
		<-r.done
	}
	return nil
}

// ActiveRegistrations returns the number of registered callbacks.
func (b *Bridge) ActiveRegistrations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.replays)
}

func (b *Bridge) fused(method string, args map[string]any) (any, error) {
	b.mu.Lock()
	closed, unavailable := b.closed, b.cfg.ServiceUnavailable
	b.mu.Unlock()
	if closed {
		return nil, platform.ErrClosed
	}

	switch method {
	case "isServiceAvailable":
		return map[string]any{"available": !unavailable}, nil
	case "getLocationAvailability":
		b.mu.Lock()
		defer b.mu.Unlock()
		return map[string]any{"available": b.available}, nil
	case "getLastLocation":
		if err := b.requireService(unavailable); err != nil {
			return nil, err
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.last == nil {
			return nil, nil
		}
		return *b.last, nil
	case "requestLocationUpdates":
		if err := b.requireService(unavailable); err != nil {
			return nil, err
		}
		req, err := parseRequest(args)
		if err != nil {
			return nil, err
		}
		return nil, b.start(req)
	case "removeLocationUpdates":
		id, ok := callbackID(args)
		if !ok {
			return nil, platform.ErrInvalidArguments
		}
		b.stop(id)
		return nil, nil
	}
	return nil, platform.ErrMethodNotFound
}

func (b *Bridge) requireService(unavailable bool) error {
	if unavailable {
		return platform.NewChannelError(geolocator.CodeServiceUnavailable, "location service not available")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.permission != platform.PermissionGranted {
		return platform.NewChannelError(geolocator.CodePermissionDenied, "location permission not granted")
	}
	return nil
}

func (b *Bridge) permissions(method string, args map[string]any) (any, error) {
	name, _ := args["permission"].(string)

	switch method {
	case "check":
		b.mu.Lock()
		defer b.mu.Unlock()
		return map[string]any{"status": string(b.permission)}, nil
	case "request":
		b.mu.Lock()
		b.permission = b.cfg.Grant
		status := b.permission
		b.mu.Unlock()
		b.logger.Info("permission requested", "permission", name, "status", status)

		// The answer arrives later, like a dialog result.
		data, err := json.Marshal(map[string]any{"permission": name, "status": string(status)})
		if err != nil {
			return nil, err
		}
		go b.deliver(permissionChangesChannel, data)
		return nil, nil
	case "openSettings":
		return nil, nil
	}
	return nil, platform.ErrMethodNotFound
}

// request is a decoded requestLocationUpdates call.
type request struct {
	callbackID           int64
	priority             int
	interval             time.Duration
	maxWait              time.Duration
	smallestDisplacement float64
}

func parseRequest(args map[string]any) (request, error) {
	id, ok := callbackID(args)
	if !ok {
		return request{}, platform.ErrInvalidArguments
	}
	number := func(key string) float64 {
		v, _ := args[key].(float64)
		return v
	}
	return request{
		callbackID:           id,
		priority:             int(number("priority")),
		interval:             time.Duration(number("intervalMs")) * time.Millisecond,
		maxWait:              time.Duration(number("maxWaitTimeMs")) * time.Millisecond,
		smallestDisplacement: number("smallestDisplacement"),
	}, nil
}

func callbackID(args map[string]any) (int64, bool) {
	v, ok := args["callbackId"].(float64)
	if !ok || v == 0 {
		return 0, false
	}
	return int64(v), true
}

func (b *Bridge) start(req request) error {
	step := req.interval
	if b.cfg.Step > 0 {
		step = b.cfg.Step
	}
	if step <= 0 {
		step = DefaultStep
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &replay{cancel: cancel, done: make(chan struct{})}

	b.mu.Lock()
	prev := b.replays[req.callbackID]
	b.replays[req.callbackID] = r
	b.mu.Unlock()
	if prev != nil {
		prev.cancel()
	}

	b.logger.Info("location updates requested",
		"callbackId", req.callbackID,
		"priority", req.priority,
		"step", step,
		"smallestDisplacement", req.smallestDisplacement)
	go b.run(ctx, r, req, step)
	return nil
}

func (b *Bridge) stop(id int64) {
	b.mu.Lock()
	r := b.replays[id]
	delete(b.replays, id)
	b.mu.Unlock()
	if r == nil {
		return
	}
	// Not waiting for the replay: it may be delivering into the caller.
	r.cancel()
	b.logger.Info("location updates removed", "callbackId", id)
}

// run walks the track once per step. Points closer than the request's
// smallest displacement to the last delivered one are skipped; with a max
// wait the fixes are delivered in batches.
func (b *Bridge) run(ctx context.Context, r *replay, req request, step time.Duration) {
	defer close(r.done)

	batchSize := 1
	if req.maxWait > step {
		batchSize = int(req.maxWait / step)
	}

	b.send(ctx, req.callbackID, availabilityEvent(req.callbackID, true))

	ticker := time.NewTicker(step)
	defer ticker.Stop()

	var (
		batch     []fusedLocation
		delivered *TrackPoint
		i         int
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if i == len(b.cfg.Track) {
			if !b.cfg.Loop {
				b.flush(ctx, req.callbackID, batch)
				b.send(ctx, req.callbackID, availabilityEvent(req.callbackID, false))
				return
			}
			i = 0
		}
		index := i
		p := b.cfg.Track[index]
		i++

		if delivered != nil && req.smallestDisplacement > 0 &&
			geo.DistanceHaversine(delivered.Point, p.Point) < req.smallestDisplacement {
			continue
		}

		loc := b.locationAt(p, index, step)
		delivered = &b.cfg.Track[index]
		batch = append(batch, loc)
		if len(batch) >= batchSize {
			b.flush(ctx, req.callbackID, batch)
			batch = nil
		}
	}
}

func (b *Bridge) locationAt(p TrackPoint, index int, step time.Duration) fusedLocation {
	loc := fusedLocation{
		Latitude:  p.Point.Lat(),
		Longitude: p.Point.Lon(),
		Accuracy:  p.Accuracy,
		Time:      b.now().UnixMilli(),
		IsMock:    true,
	}
	if index > 0 {
		from := b.cfg.Track[index-1].Point
		loc.Bearing = geo.Bearing(from, p.Point)
		loc.Speed = geo.DistanceHaversine(from, p.Point) / step.Seconds()
	}
	return loc
}

func (b *Bridge) flush(ctx context.Context, id int64, batch []fusedLocation) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	last := batch[len(batch)-1]
	b.last = &last
	b.mu.Unlock()

	b.send(ctx, id, map[string]any{
		"callbackId": id,
		"type":       "result",
		"locations":  batch,
	})
}

func (b *Bridge) send(ctx context.Context, id int64, event map[string]any) {
	if ctx.Err() != nil {
		return
	}
	if t, _ := event["type"].(string); t == "availability" {
		b.mu.Lock()
		b.available, _ = event["available"].(bool)
		b.mu.Unlock()
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to encode callback event", "callbackId", id, "error", err)
		return
	}
	b.deliver(geolocator.FusedCallbackChannel, data)
}

func (b *Bridge) deliver(channel string, data []byte) {
	if err := b.cfg.Deliver(channel, data); err != nil {
		b.logger.Warn("event delivery failed", "channel", channel, "error", err)
	}
}

func availabilityEvent(id int64, available bool) map[string]any {
	return map[string]any{"callbackId": id, "type": "availability", "available": available}
}

// fusedLocation is a location in the native plugin's encoding.
type fusedLocation struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Altitude         float64 `json:"altitude"`
	Accuracy         float64 `json:"accuracy"`
	VerticalAccuracy float64 `json:"verticalAccuracy"`
	Bearing          float64 `json:"bearing"`
	Speed            float64 `json:"speed"`
	Time             int64   `json:"time"`
	IsMock           bool    `json:"isMock"`
}
