package platform

import (
	"context"
	"sync"
	"time"

	"github.com/go-drift/geolocator/pkg/errors"
)

// PermissionResult represents the status of a permission.
type PermissionResult string

// Permission status constants.
const (
	// PermissionGranted indicates full access has been granted.
	PermissionGranted PermissionResult = "granted"

	// PermissionDenied indicates the user denied the permission. The app may request again.
	PermissionDenied PermissionResult = "denied"

	// PermissionPermanentlyDenied indicates the user denied with "don't ask again" (Android)
	// or denied twice (iOS). The app cannot request again; direct user to Settings.
	PermissionPermanentlyDenied PermissionResult = "permanently_denied"

	// PermissionRestricted indicates a system policy prevents granting (parental controls,
	// MDM, enterprise policy). The user cannot change this; no dialog will be shown.
	PermissionRestricted PermissionResult = "restricted"

	// PermissionNotDetermined indicates the user has not yet been asked. Calling Request()
	// will show the system permission dialog.
	PermissionNotDetermined PermissionResult = "not_determined"

	// PermissionResultUnknown indicates the status could not be determined.
	PermissionResultUnknown PermissionResult = "unknown"
)

// DefaultPermissionTimeout bounds Request when ctx carries no deadline.
const DefaultPermissionTimeout = 30 * time.Second

const (
	permissionsChannelName       = "drift/permissions"
	permissionChangesChannelName = "drift/permissions/changes"
)

// isTerminalStatus returns true if the status is a terminal state that won't change
// from showing a permission dialog.
func isTerminalStatus(status PermissionResult) bool {
	switch status {
	case PermissionGranted, PermissionPermanentlyDenied, PermissionRestricted:
		return true
	default:
		return false
	}
}

var (
	permissionChannelsOnce   sync.Once
	permissionMethodChannel  *MethodChannel
	permissionChangesChannel *EventChannel
)

func permissionChannels() (*MethodChannel, *EventChannel) {
	permissionChannelsOnce.Do(func() {
		permissionMethodChannel = NewMethodChannel(permissionsChannelName)
		permissionChangesChannel = NewEventChannel(permissionChangesChannelName)
	})
	return permissionMethodChannel, permissionChangesChannel
}

// permissionType implements Permission for one named native permission.
type permissionType struct {
	name    string
	channel *MethodChannel
	changes *Stream[permissionChange]

	// Only one dialog can be shown at a time.
	requestMu sync.Mutex
}

func newPermission(name string) *permissionType {
	channel, changes := permissionChannels()
	return &permissionType{
		name:    name,
		channel: channel,
		changes: NewStream(changes, parsePermissionChange),
	}
}

// Status returns the current status of the permission.
func (p *permissionType) Status(ctx context.Context) (PermissionStatus, error) {
	result, err := p.channel.InvokeContext(ctx, "check", map[string]any{
		"permission": p.name,
	})
	if err != nil {
		return PermissionResultUnknown, err
	}
	return parsePermissionResult(result), nil
}

// Request asks the user for the permission and blocks until the user responds,
// ctx is done, or DefaultPermissionTimeout elapses when ctx has no deadline.
func (p *permissionType) Request(ctx context.Context) (PermissionStatus, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPermissionTimeout)
		defer cancel()
	}

	p.requestMu.Lock()
	defer p.requestMu.Unlock()

	currentStatus, err := p.Status(ctx)
	if err != nil {
		return PermissionResultUnknown, err
	}
	if isTerminalStatus(currentStatus) {
		return currentStatus, nil
	}

	// Subscribe before triggering the native request so the answer cannot be missed.
	resultChan := make(chan PermissionResult, 1)
	unsubscribe := p.changes.Listen(func(change permissionChange) {
		if change.Permission != p.name {
			return
		}
		select {
		case resultChan <- change.Result:
		default:
		}
	})
	defer unsubscribe()

	if _, err := p.channel.InvokeContext(ctx, "request", map[string]any{"permission": p.name}); err != nil {
		return PermissionResultUnknown, err
	}

	select {
	case result := <-resultChan:
		return result, nil
	case <-ctx.Done():
		// Re-check with a fresh context in case the event was missed.
		recheck, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if finalStatus, err := p.Status(recheck); err == nil && isTerminalStatus(finalStatus) {
			return finalStatus, nil
		}
		return PermissionResultUnknown, contextError(ctx.Err())
	}
}

// IsGranted returns true if the permission is currently granted.
func (p *permissionType) IsGranted(ctx context.Context) bool {
	status, err := p.Status(ctx)
	return err == nil && status == PermissionGranted
}

// IsDenied returns true if the permission is denied or permanently denied.
func (p *permissionType) IsDenied(ctx context.Context) bool {
	status, err := p.Status(ctx)
	if err != nil {
		return false
	}
	return status == PermissionDenied || status == PermissionPermanentlyDenied
}

// Listen reports status changes of this permission only.
func (p *permissionType) Listen(handler func(PermissionStatus)) (unsubscribe func()) {
	return p.changes.Listen(func(change permissionChange) {
		if change.Permission == p.name {
			handler(change.Result)
		}
	})
}

// OpenAppSettings opens the system settings page for this app, where users can
// manage permissions manually. Use this when a permission is permanently denied
// and the app cannot request it again.
func OpenAppSettings(ctx context.Context) error {
	channel, _ := permissionChannels()
	_, err := channel.InvokeContext(ctx, "openSettings", nil)
	return err
}

// permissionChange represents a permission status change event.
type permissionChange struct {
	Permission string
	Result     PermissionResult
}

func parsePermissionResult(result any) PermissionResult {
	if m, ok := result.(map[string]any); ok {
		if status := parseString(m["status"]); status != "" {
			return PermissionResult(status)
		}
	}
	return PermissionResultUnknown
}

func parsePermissionChange(data any) (permissionChange, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return permissionChange{}, &errors.ParseError{
			Channel:  permissionChangesChannelName,
			DataType: "PermissionChange",
			Got:      data,
		}
	}
	return permissionChange{
		Permission: parseString(m["permission"]),
		Result:     PermissionResult(parseString(m["status"])),
	}, nil
}
