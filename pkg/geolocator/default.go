package geolocator

import (
	"sync"

	"github.com/go-drift/geolocator/pkg/platform"
)

var (
	fusedClientOnce sync.Once
	fusedClient     *FusedClient

	currentMu sync.Mutex
	current   *Controller
)

// DefaultClient returns the process-wide fused client, creating it on first use.
func DefaultClient() *FusedClient {
	fusedClientOnce.Do(func() {
		fusedClient = NewFusedClient()
	})
	return fusedClient
}

// Current returns the process-wide Controller, creating it on first use over
// DefaultClient and the when-in-use location permission.
func Current() *Controller {
	currentMu.Lock()
	defer currentMu.Unlock()
	if current == nil {
		current = NewController(DefaultClient(), platform.Location.Permission.WhenInUse, Options{})
	}
	return current
}

// SetCurrent replaces the process-wide Controller, for hosts that need custom
// Options. It returns the previous one, which keeps its session if any.
func SetCurrent(c *Controller) *Controller {
	currentMu.Lock()
	defer currentMu.Unlock()
	prev := current
	current = c
	return prev
}
