package geolocator

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/go-drift/geolocator/pkg/errors"
	"github.com/go-drift/geolocator/pkg/platform"
)

// DefaultTeardownTimeout bounds how long a state transition waits for the
// native service to confirm an unregistration.
const DefaultTeardownTimeout = 5 * time.Second

// Options configures a Controller. The zero value is usable.
type Options struct {
	// Logger receives lifecycle logs. Nil means slog.Default().
	Logger *slog.Logger
	// Dispatcher is the event loop native callbacks and events are delivered
	// on. Nil means platform.DispatchOrRun.
	Dispatcher Dispatcher
	// TeardownTimeout bounds the wait for native unregistration. Zero means
	// DefaultTeardownTimeout. When it elapses the transition proceeds and the
	// unregistration keeps running in the background.
	TeardownTimeout time.Duration
	// DesiredAccuracy in meters, used to pick the default priority.
	DesiredAccuracy float64
}

// session is one registration of a callback with the native service.
type session struct {
	id       uuid.UUID
	callback *fusedCallback
	request  NativeRequest
	started  time.Time

	// state moves pending -> live -> retired and never back. Only a live
	// session publishes; whatever else the native side delivers is dropped.
	state atomic.Int32

	// deliveries is read-held across the state check and the emit of every
	// callback, so holding it for writing waits out in-flight deliveries.
	deliveries sync.RWMutex
}

const (
	sessionPending int32 = iota
	sessionLive
	sessionRetired
)

// deliver runs emit if s is live. kind names the event in the drop log.
func (s *session) deliver(logger *slog.Logger, kind string, emit func()) {
	s.deliveries.RLock()
	defer s.deliveries.RUnlock()
	if s.state.Load() != sessionLive {
		logger.Debug("dropping "+kind+" from inactive session", "session", s.id)
		return
	}
	emit()
}

// retire stops s from publishing and waits up to timeout for deliveries
// already past the state check. It reports whether they drained in time.
func (s *session) retire(timeout time.Duration) bool {
	s.state.Store(sessionRetired)

	deadline := time.Now().Add(timeout)
	for !s.deliveries.TryLock() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
	s.deliveries.Unlock()
	return true
}

// Controller manages the single native location subscription and translates
// its callbacks into PositionChanged, PositionError and AvailabilityChanged
// events. All methods are safe for concurrent use.
type Controller struct {
	client          NativeClient
	permission      PermissionProvider
	logger          *slog.Logger
	dispatch        Dispatcher
	teardownTimeout time.Duration

	// stateLock serializes every start, stop and replace. It is a weighted
	// semaphore so that waiting honors the caller's context.
	stateLock       *semaphore.Weighted
	active          atomic.Pointer[session]
	desiredAccuracy atomic.Uint64

	positionChanged     *Feed[Position]
	positionError       *Feed[error]
	availabilityChanged *Feed[bool]
}

// NewController creates a Controller over client. A nil permission provider
// treats location permission as always granted.
func NewController(client NativeClient, permission PermissionProvider, opts Options) *Controller {
	c := &Controller{
		client:              client,
		permission:          permission,
		logger:              opts.Logger,
		dispatch:            opts.Dispatcher,
		teardownTimeout:     opts.TeardownTimeout,
		stateLock:           semaphore.NewWeighted(1),
		positionChanged:     newFeed[Position]("geolocator.PositionChanged"),
		positionError:       newFeed[error]("geolocator.PositionError"),
		availabilityChanged: newFeed[bool]("geolocator.AvailabilityChanged"),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.dispatch == nil {
		c.dispatch = platform.DispatchOrRun
	}
	if c.teardownTimeout <= 0 {
		c.teardownTimeout = DefaultTeardownTimeout
	}
	c.SetDesiredAccuracy(opts.DesiredAccuracy)
	return c
}

// PositionChanged publishes every fix of the active session.
func (c *Controller) PositionChanged() *Feed[Position] { return c.positionChanged }

// PositionError publishes errors delivered by native callbacks, such as a
// loss of location availability (KindPositionUnavailable).
func (c *Controller) PositionError() *Feed[error] { return c.positionError }

// AvailabilityChanged publishes availability notices of the active session.
func (c *Controller) AvailabilityChanged() *Feed[bool] { return c.availabilityChanged }

// IsListening reports whether a session is active. It never blocks.
func (c *Controller) IsListening() bool {
	return c.active.Load() != nil
}

// SupportsHeading reports whether fixes carry a heading.
func (c *Controller) SupportsHeading() bool { return true }

// DesiredAccuracy returns the desired accuracy in meters.
func (c *Controller) DesiredAccuracy() float64 {
	return math.Float64frombits(c.desiredAccuracy.Load())
}

// SetDesiredAccuracy sets the desired accuracy in meters. It affects sessions
// started afterwards.
func (c *Controller) SetDesiredAccuracy(meters float64) {
	c.desiredAccuracy.Store(math.Float64bits(meters))
}

// StartListening starts location updates, replacing any active session.
//
// The request is built by BuildNativeRequest from req, falling back to
// minimumTime and minimumDistance. Permission is checked (and requested when
// missing) first; a denial returns an error of kind KindUnauthorized and
// leaves the state untouched.
//
// The new callback is registered before the previous session is retired, so
// IsListening stays true for the whole of a replace. If the registration
// fails, the previous session, if any, stays active.
func (c *Controller) StartListening(ctx context.Context, minimumTime time.Duration, minimumDistance float64, includeHeading bool, settings *ListenerSettings, req *LocationRequest) (bool, error) {
	const op = "geolocator.StartListening"

	if err := c.ensurePermission(ctx, op); err != nil {
		return false, err
	}
	if err := c.ensureService(ctx, op); err != nil {
		return false, err
	}

	native := BuildNativeRequest(req, minimumTime, minimumDistance, includeHeading, c.DesiredAccuracy(), settings)
	if settings != nil && (settings.AllowBackgroundUpdates || settings.PauseLocationUpdatesAutomatically) {
		c.logger.Debug("listener settings not supported by the fused provider are ignored",
			"allowBackgroundUpdates", settings.AllowBackgroundUpdates,
			"pauseLocationUpdatesAutomatically", settings.PauseLocationUpdatesAutomatically)
	}

	s := &session{id: uuid.New(), request: native}
	s.callback = newFusedCallback(
		func(available bool) { c.onAvailability(s, available) },
		func(pos Position) { c.onPosition(s, pos) },
	)

	if err := c.stateLock.Acquire(ctx, 1); err != nil {
		return false, contextError(op, err)
	}
	defer c.stateLock.Release(1)

	if err := c.client.RequestLocationUpdates(ctx, native, s.callback, c.dispatch); err != nil {
		// The service may have registered before failing; make sure nothing dangles.
		c.teardown(s)
		c.logger.Warn("location session failed to start", "session", s.id, "error", err)
		return false, nativeError(op, err)
	}

	// Events the new callback sees before this point are dropped. The
	// previous session stops publishing before the new one starts, so the
	// two never forward at the same time.
	prev := c.active.Load()
	if prev != nil {
		c.logger.Info("replacing location session", "previous", prev.id, "next", s.id)
		c.retire(prev)
	}
	s.started = time.Now()
	s.state.Store(sessionLive)
	c.active.Store(s)
	if prev != nil {
		c.removeCallback(prev.callback, "session", prev.id)
	}

	c.logger.Info("location session started",
		"session", s.id,
		"priority", native.Priority.String(),
		"interval", native.Interval,
		"fastestInterval", native.FastestInterval,
		"smallestDisplacement", native.SmallestDisplacement)
	return true, nil
}

// StopListening stops the active session. It is a no-op returning true when
// idle. A native unregistration that does not complete within the teardown
// timeout is logged and does not fail the stop.
func (c *Controller) StopListening(ctx context.Context) (bool, error) {
	if err := c.stateLock.Acquire(ctx, 1); err != nil {
		return false, contextError("geolocator.StopListening", err)
	}
	defer c.stateLock.Release(1)

	if prev := c.active.Swap(nil); prev != nil {
		c.teardown(prev)
		c.logger.Info("location session stopped", "session", prev.id, "duration", time.Since(prev.started))
	}
	return true, nil
}

// LastKnownLocation returns the last location known to the native service
// without starting updates. It does not interact with the listening state.
func (c *Controller) LastKnownLocation(ctx context.Context) (*Position, error) {
	const op = "geolocator.LastKnownLocation"

	if err := c.ensurePermission(ctx, op); err != nil {
		return nil, err
	}
	pos, err := c.client.LastLocation(ctx)
	if err != nil {
		return nil, nativeError(op, err)
	}
	if pos == nil {
		return nil, errors.New(op, errors.KindPositionUnavailable, fmt.Errorf("no last known location"))
	}
	return pos, nil
}

// IsGeolocationAvailable reports whether the native service currently has
// location data. Errors count as unavailable.
func (c *Controller) IsGeolocationAvailable(ctx context.Context) bool {
	available, err := c.client.LocationAvailability(ctx)
	if err != nil {
		c.logger.Debug("location availability query failed", "error", err)
		return false
	}
	return available != nil && *available
}

// IsGeolocationEnabled reports whether the native location service is usable.
func (c *Controller) IsGeolocationEnabled(ctx context.Context) bool {
	ok, err := c.client.ServiceAvailable(ctx)
	if err != nil {
		c.logger.Debug("location service query failed", "error", err)
		return false
	}
	return ok
}

// AddressesForPosition is not supported by the fused backend.
func (c *Controller) AddressesForPosition(ctx context.Context, pos Position, mapKey string) ([]Address, error) {
	return nil, errors.New("geolocator.AddressesForPosition", errors.KindNotSupported, nil)
}

// PositionsForAddress is not supported by the fused backend.
func (c *Controller) PositionsForAddress(ctx context.Context, address, mapKey string) ([]Position, error) {
	return nil, errors.New("geolocator.PositionsForAddress", errors.KindNotSupported, nil)
}

func (c *Controller) onPosition(s *session, pos Position) {
	s.deliver(c.logger, "position", func() {
		c.positionChanged.emit(pos)
	})
}

func (c *Controller) onAvailability(s *session, available bool) {
	s.deliver(c.logger, "availability", func() {
		c.availabilityChanged.emit(available)
		if !available {
			c.positionError.emit(errors.New("geolocator.availability", errors.KindPositionUnavailable, nil))
		}
	})
}

// retire stops s from publishing. A handler still running after
// teardownTimeout, for instance one that re-entered StartListening, is
// logged and not waited for.
func (c *Controller) retire(s *session) {
	if !s.retire(c.teardownTimeout) {
		c.logger.Warn("in-flight delivery did not finish in time, continuing",
			"session", s.id, "timeout", c.teardownTimeout)
	}
}

// teardown retires and unregisters s, each step waiting at most
// teardownTimeout.
func (c *Controller) teardown(s *session) {
	c.retire(s)
	c.removeCallback(s.callback, "session", s.id)
}

func (c *Controller) removeCallback(cb Callback, logAttrs ...any) {
	ctx, cancel := context.WithTimeout(context.Background(), c.teardownTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- c.client.RemoveLocationUpdates(ctx, cb)
	}()

	select {
	case err := <-done:
		if err != nil {
			errors.Report(errors.New("geolocator.removeLocationUpdates", errors.KindPlatform, err))
		}
	case <-ctx.Done():
		c.logger.Warn("native unregistration did not complete in time, continuing",
			append(logAttrs, "timeout", c.teardownTimeout)...)
	}
}

func (c *Controller) ensurePermission(ctx context.Context, op string) error {
	if c.permission == nil {
		return nil
	}

	status, err := c.permission.Status(ctx)
	if err == nil && status == platform.PermissionGranted {
		return nil
	}
	c.logger.Info("location permission not granted, requesting", "status", status)

	status, err = c.permission.Request(ctx)
	if err != nil {
		return errors.New(op, errors.KindUnauthorized, err)
	}
	if status != platform.PermissionGranted {
		c.logger.Warn("location permission denied", "status", status)
		return errors.New(op, errors.KindUnauthorized, fmt.Errorf("permission status %q", status))
	}
	return nil
}

func (c *Controller) ensureService(ctx context.Context, op string) error {
	ok, err := c.client.ServiceAvailable(ctx)
	if err != nil {
		return nativeError(op, err)
	}
	if !ok {
		return errors.New(op, errors.KindPositionUnavailable, fmt.Errorf("location service unavailable"))
	}
	return nil
}

func contextError(op string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.New(op, errors.KindTimeout, err)
	}
	return errors.New(op, errors.KindCanceled, err)
}
