package geolocator

import (
	"context"

	"github.com/go-drift/geolocator/pkg/platform"
)

// Callback receives notifications from the native location service.
// Implementations must be comparable; the native client keys registrations
// by callback identity.
type Callback interface {
	// OnLocationAvailability is called when the availability of location
	// data changes.
	OnLocationAvailability(available bool)
	// OnLocationResult is called when new fixes are available.
	OnLocationResult(result LocationResult)
}

// Dispatcher runs a callback on the event loop the caller registered with.
type Dispatcher func(func())

// NativeClient is the native location service boundary. Any platform API
// offering these operations can back a Controller.
type NativeClient interface {
	// RequestLocationUpdates registers cb for updates matching req. Callbacks
	// are delivered through dispatch.
	RequestLocationUpdates(ctx context.Context, req NativeRequest, cb Callback, dispatch Dispatcher) error
	// RemoveLocationUpdates unregisters cb. Removing an unknown callback is a no-op.
	RemoveLocationUpdates(ctx context.Context, cb Callback) error
	// LastLocation returns the most recent fix known to the service, or nil.
	LastLocation(ctx context.Context) (*Position, error)
	// LocationAvailability reports whether fixes are currently available, or
	// nil when the service cannot tell.
	LocationAvailability(ctx context.Context) (*bool, error)
	// ServiceAvailable reports whether the native location service can be used at all.
	ServiceAvailable(ctx context.Context) (bool, error)
}

// PermissionProvider checks and requests location permission.
// platform.Permission satisfies it.
type PermissionProvider interface {
	Status(ctx context.Context) (platform.PermissionStatus, error)
	Request(ctx context.Context) (platform.PermissionStatus, error)
}

// inline delivers callbacks on the native delivery goroutine.
func inline(fn func()) { fn() }
