package cmd

import (
	"context"
	"fmt"
)

func init() {
	RegisterCommand(&Command{
		Name:  "current",
		Short: "Print the last known and a fresh position",
		Long: `Query the last known position, then wait for a single fresh fix.

Flags:
  --timeout DURATION  Deadline for the fresh fix (default 30s)
  --step DURATION     Interval between replayed points
  --heading           Request heading (selects high accuracy)`,
		Usage: "geoprobe current [track.geojson] [flags]",
		Run:   runCurrent,
	})
}

func runCurrent(args []string) error {
	p, err := newProbe(args)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := context.Background()
	fmt.Printf("Service enabled: %v\n", p.controller.IsGeolocationEnabled(ctx))

	if last, err := p.controller.LastKnownLocation(ctx); err == nil {
		fmt.Print("Last known: ")
		printPosition(*last)
	} else {
		fmt.Printf("Last known: none (%v)\n", err)
	}

	pos, err := p.controller.CurrentPosition(ctx, p.cfg.Timeout, p.cfg.IncludeHeading)
	if err != nil {
		return fmt.Errorf("current position: %w", err)
	}
	fmt.Print("Current:    ")
	printPosition(*pos)
	return nil
}
