package platform

import "context"

// PermissionStatus represents the current state of a permission.
// This is an alias for PermissionResult for naming consistency.
type PermissionStatus = PermissionResult

// Permission provides access to a runtime permission for a platform feature.
// Use Status to check current state, Request to prompt the user, and Listen
// to observe changes.
//
// The ctx parameter bounds Request, which blocks until the user answers.
// Status, IsGranted and IsDenied accept ctx for API consistency.
type Permission interface {
	// Status returns the current permission status.
	Status(ctx context.Context) (PermissionStatus, error)

	// Request prompts the user for permission and blocks until they respond
	// or the context is canceled/times out. If already in a terminal state,
	// returns immediately without showing a dialog.
	Request(ctx context.Context) (PermissionStatus, error)

	// IsGranted returns true if permission is granted.
	// Best-effort convenience: returns false on any error.
	IsGranted(ctx context.Context) bool

	// IsDenied returns true if permission is denied or permanently denied.
	// Best-effort convenience: returns false on any error.
	IsDenied(ctx context.Context) bool

	// Listen subscribes to permission status changes.
	// Returns an unsubscribe function. Multiple listeners receive all events.
	Listen(handler func(PermissionStatus)) (unsubscribe func())
}
