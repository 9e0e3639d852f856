package simulator

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/geolocator/pkg/errors"
	"github.com/go-drift/geolocator/pkg/geolocator"
	"github.com/go-drift/geolocator/pkg/platform"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// northbound returns n points 0.0001 degrees (about 11 m) apart.
func northbound(n int) Track {
	track := make(Track, n)
	for i := range track {
		track[i] = TrackPoint{Point: orb.Point{0, float64(i) * 0.0001}, Accuracy: DefaultAccuracy}
	}
	return track
}

type harness struct {
	bridge     *Bridge
	controller *geolocator.Controller
	positions  chan geolocator.Position
	lost       chan struct{}
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	if cfg.Step == 0 {
		cfg.Step = 5 * time.Millisecond
	}
	cfg.Logger = discard

	bridge, err := New(cfg)
	require.NoError(t, err)
	platform.SetupTestBridge(t.Cleanup, bridge)
	t.Cleanup(func() { bridge.Close() })

	h := &harness{
		bridge: bridge,
		controller: geolocator.NewController(geolocator.NewFusedClient(), platform.Location.Permission.WhenInUse, geolocator.Options{
			Logger:          discard,
			TeardownTimeout: time.Second,
		}),
		positions: make(chan geolocator.Position, 64),
		lost:      make(chan struct{}, 1),
	}
	h.controller.PositionChanged().Listen(func(p geolocator.Position) {
		select {
		case h.positions <- p:
		default:
		}
	})
	h.controller.AvailabilityChanged().Listen(func(available bool) {
		if !available {
			select {
			case h.lost <- struct{}{}:
			default:
			}
		}
	})
	return h
}

// drain collects positions until the track ends.
func (h *harness) drain(t *testing.T) []geolocator.Position {
	t.Helper()
	select {
	case <-h.lost:
	case <-time.After(5 * time.Second):
		t.Fatal("track did not finish")
	}
	var out []geolocator.Position
	for {
		select {
		case p := <-h.positions:
			out = append(out, p)
		default:
			return out
		}
	}
}

func TestReplayDeliversTrackInOrder(t *testing.T) {
	h := newHarness(t, Config{Track: northbound(4)})

	ok, err := h.controller.StartListening(context.Background(), 0, 0, false, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	positions := h.drain(t)
	require.Len(t, positions, 4)
	for i, p := range positions {
		assert.InDelta(t, float64(i)*0.0001, p.Latitude, 1e-9)
		assert.True(t, p.IsMocked)
	}
	assert.InDelta(t, 0, positions[1].Heading, 1e-6, "northbound")
	assert.Greater(t, positions[1].Speed, 0.0)

	last, err := h.controller.LastKnownLocation(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.0003, last.Latitude, 1e-9)
	assert.False(t, h.controller.IsGeolocationAvailable(context.Background()))
}

func TestReplayHonorsSmallestDisplacement(t *testing.T) {
	h := newHarness(t, Config{Track: northbound(11)})

	_, err := h.controller.StartListening(context.Background(), 0, 30, false, nil, nil)
	require.NoError(t, err)

	positions := h.drain(t)
	require.Len(t, positions, 4)
	assert.InDelta(t, 0.0003, positions[1].Latitude, 1e-9)
	assert.InDelta(t, 0.0009, positions[3].Latitude, 1e-9)
}

func TestReplayBatchesDeferredUpdates(t *testing.T) {
	h := newHarness(t, Config{Track: northbound(8)})

	settings := &geolocator.ListenerSettings{DeferLocationUpdates: true, DeferralTime: 20 * time.Millisecond}
	_, err := h.controller.StartListening(context.Background(), 0, 0, false, settings, nil)
	require.NoError(t, err)

	positions := h.drain(t)
	require.Len(t, positions, 2)
	assert.InDelta(t, 0.0003, positions[0].Latitude, 1e-9)
	assert.InDelta(t, 0.0007, positions[1].Latitude, 1e-9)
}

func TestStopEndsReplay(t *testing.T) {
	h := newHarness(t, Config{Track: northbound(4), Loop: true})
	ctx := context.Background()

	_, err := h.controller.StartListening(ctx, 0, 0, false, nil, nil)
	require.NoError(t, err)
	select {
	case <-h.positions:
	case <-time.After(5 * time.Second):
		t.Fatal("no position delivered")
	}

	_, err = h.controller.StopListening(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, h.bridge.ActiveRegistrations())
	assert.False(t, h.controller.IsListening())
}

func TestReplaceKeepsOneReplay(t *testing.T) {
	h := newHarness(t, Config{Track: northbound(4), Loop: true})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.controller.StartListening(ctx, 0, 0, false, nil, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.bridge.ActiveRegistrations())
}

func TestPermissionDeniedByUser(t *testing.T) {
	h := newHarness(t, Config{Track: northbound(2), Grant: platform.PermissionDenied})

	ok, err := h.controller.StartListening(context.Background(), 0, 0, false, nil, nil)
	assert.False(t, ok)
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))
	assert.Equal(t, 0, h.bridge.ActiveRegistrations())
}

func TestServiceUnavailable(t *testing.T) {
	h := newHarness(t, Config{
		Track:              northbound(2),
		Permission:         platform.PermissionGranted,
		ServiceUnavailable: true,
	})

	_, err := h.controller.StartListening(context.Background(), 0, 0, false, nil, nil)
	assert.Equal(t, errors.KindPositionUnavailable, errors.KindOf(err))
	assert.False(t, h.controller.IsGeolocationEnabled(context.Background()))
}

func TestCurrentPositionOverSimulator(t *testing.T) {
	h := newHarness(t, Config{Track: northbound(3), Permission: platform.PermissionGranted})

	pos, err := h.controller.CurrentPosition(context.Background(), 5*time.Second, false)
	require.NoError(t, err)
	assert.InDelta(t, 0, pos.Latitude, 1e-9)
	assert.False(t, h.controller.IsListening())
	assert.Equal(t, 0, h.bridge.ActiveRegistrations())
}

func TestClosedBridge(t *testing.T) {
	bridge, err := New(Config{Track: northbound(1), Logger: discard})
	require.NoError(t, err)
	require.NoError(t, bridge.Close())

	_, err = bridge.InvokeMethod(geolocator.FusedMethodChannel, "isServiceAvailable", nil)
	assert.ErrorIs(t, err, platform.ErrClosed)
	assert.ErrorIs(t, bridge.StartEventStream(geolocator.FusedCallbackChannel), platform.ErrClosed)
}

func TestNewRequiresTrack(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
