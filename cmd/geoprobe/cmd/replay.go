package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/go-drift/geolocator/pkg/geolocator"
)

func init() {
	RegisterCommand(&Command{
		Name:  "replay",
		Short: "Stream positions from a replayed track",
		Long: `Start a listening session and print every position until the track
ends, the timeout elapses, or the process is interrupted.

Flags:
  --step DURATION     Interval between replayed points
  --distance METERS   Minimum distance between reported positions
  --timeout DURATION  Stop after this long (default 30s)
  --loop              Restart the track when it ends
  --heading           Request heading (selects high accuracy)`,
		Usage: "geoprobe replay [track.geojson] [flags]",
		Run:   runReplay,
	})
}

func runReplay(args []string) error {
	p, err := newProbe(args)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	// A non-looping track ends with an availability loss.
	ended := make(chan struct{})
	var endOnce sync.Once
	var count atomic.Int64
	unsubscribe := p.controller.PositionChanged().Listen(func(pos geolocator.Position) {
		count.Add(1)
		printPosition(pos)
	})
	defer unsubscribe()
	unsubscribeErrors := p.controller.PositionError().Listen(func(err error) {
		p.logger.Info("position error", "error", err)
		endOnce.Do(func() { close(ended) })
	})
	defer unsubscribeErrors()

	if _, err := p.controller.StartListening(ctx, p.cfg.MinimumTime, p.cfg.MinimumDistance, p.cfg.IncludeHeading, nil, nil); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}

	select {
	case <-ended:
	case <-ctx.Done():
	}

	if _, err := p.controller.StopListening(context.Background()); err != nil {
		return fmt.Errorf("stop listening: %w", err)
	}
	p.logger.Info("replay finished", "positions", count.Load())
	return nil
}
