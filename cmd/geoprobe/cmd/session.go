package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-drift/geolocator/cmd/geoprobe/internal/config"
	"github.com/go-drift/geolocator/pkg/errors"
	"github.com/go-drift/geolocator/pkg/geolocator"
	"github.com/go-drift/geolocator/pkg/platform"
	"github.com/go-drift/geolocator/pkg/simulator"
)

// probe is a Controller wired to a simulator bridge.
type probe struct {
	cfg        *config.Resolved
	logger     *slog.Logger
	bridge     *simulator.Bridge
	controller *geolocator.Controller
}

// probeOptions are the flags shared by all commands.
type probeOptions struct {
	track    string
	step     time.Duration
	loop     bool
	distance float64
	timeout  time.Duration
	heading  bool
}

func parseProbeArgs(args []string) (probeOptions, error) {
	var opts probeOptions
	value := func(i int, name string) (string, error) {
		if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
			return "", fmt.Errorf("%s requires a value", name)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		var err error
		var v string
		switch arg {
		case "--loop":
			opts.loop = true
		case "--heading":
			opts.heading = true
		case "--step":
			if v, err = value(i, arg); err == nil {
				opts.step, err = time.ParseDuration(v)
				i++
			}
		case "--timeout":
			if v, err = value(i, arg); err == nil {
				opts.timeout, err = time.ParseDuration(v)
				i++
			}
		case "--distance":
			if v, err = value(i, arg); err == nil {
				opts.distance, err = strconv.ParseFloat(v, 64)
				i++
			}
		default:
			if strings.HasPrefix(arg, "--") {
				return opts, fmt.Errorf("unknown flag %s", arg)
			}
			if opts.track != "" {
				return opts, fmt.Errorf("unexpected argument %q", arg)
			}
			opts.track = arg
		}
		if err != nil {
			return opts, fmt.Errorf("%s: %w", arg, err)
		}
	}
	return opts, nil
}

// newProbe resolves configuration, applies flag overrides and installs the
// simulator as the native bridge.
func newProbe(args []string) (*probe, error) {
	opts, err := parseProbeArgs(args)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(configDir)
	if err != nil {
		return nil, err
	}
	if opts.track != "" {
		cfg.Track = opts.track
	}
	if opts.step > 0 {
		cfg.Step = opts.step
	}
	if opts.loop {
		cfg.Loop = true
	}
	if opts.distance > 0 {
		cfg.MinimumDistance = opts.distance
	}
	if opts.timeout > 0 {
		cfg.Timeout = opts.timeout
	}
	if opts.heading {
		cfg.IncludeHeading = true
	}
	if cfg.Track == "" {
		return nil, fmt.Errorf("a track is required (argument, GEOPROBE_TRACK or %s)", config.FileName)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	errors.SetHandler(&errors.LogHandler{Logger: logger, Verbose: cfg.LogLevel <= slog.LevelDebug})

	track, err := simulator.LoadTrack(cfg.Track)
	if err != nil {
		return nil, err
	}
	bridge, err := simulator.New(simulator.Config{
		Track:      track,
		Permission: cfg.Permission,
		Step:       cfg.Step,
		Loop:       cfg.Loop,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	platform.SetNativeBridge(bridge)

	controller := geolocator.NewController(geolocator.DefaultClient(), platform.Location.Permission.WhenInUse, geolocator.Options{
		Logger:          logger,
		DesiredAccuracy: cfg.DesiredAccuracy,
	})
	geolocator.SetCurrent(controller)

	logger.Info("track loaded", "path", cfg.Track, "points", len(track), "length_m", track.Length())
	return &probe{cfg: cfg, logger: logger, bridge: bridge, controller: controller}, nil
}

func (p *probe) Close() {
	if err := p.bridge.Close(); err != nil {
		p.logger.Warn("failed to close simulator", "error", err)
	}
	platform.SetNativeBridge(nil)
}

func printPosition(pos geolocator.Position) {
	fmt.Printf("%s  lat=%.6f lon=%.6f acc=%.1fm heading=%.0f speed=%.1fm/s\n",
		pos.Timestamp.Format(time.RFC3339Nano), pos.Latitude, pos.Longitude, pos.Accuracy, pos.Heading, pos.Speed)
}
