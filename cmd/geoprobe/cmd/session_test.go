package cmd

import (
	"testing"
	"time"
)

func TestParseProbeArgs(t *testing.T) {
	opts, err := parseProbeArgs([]string{"walk.geojson", "--step", "200ms", "--distance", "15", "--loop", "--heading", "--timeout", "5s"})
	if err != nil {
		t.Fatalf("parseProbeArgs: %v", err)
	}
	if opts.track != "walk.geojson" {
		t.Errorf("track = %q", opts.track)
	}
	if opts.step != 200*time.Millisecond || opts.timeout != 5*time.Second {
		t.Errorf("step = %v, timeout = %v", opts.step, opts.timeout)
	}
	if opts.distance != 15 || !opts.loop || !opts.heading {
		t.Errorf("opts = %+v", opts)
	}
}

func TestParseProbeArgsErrors(t *testing.T) {
	tests := [][]string{
		{"--step"},
		{"--step", "soon"},
		{"--distance", "far"},
		{"--unknown"},
		{"a.geojson", "b.geojson"},
	}
	for _, args := range tests {
		if _, err := parseProbeArgs(args); err == nil {
			t.Errorf("parseProbeArgs(%q) succeeded, want error", args)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"replay", "current"} {
		if _, ok := commands[name]; !ok {
			t.Errorf("command %q not registered", name)
		}
	}
}
