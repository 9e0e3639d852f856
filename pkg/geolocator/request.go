package geolocator

import (
	"strconv"
	"time"
)

// Priority is a strong hint to the fused provider about which sources to use.
// The values match the native constants.
type Priority int

const (
	// HighAccuracy requests the most accurate locations available.
	HighAccuracy Priority = 100
	// BalancedPowerAccuracy requests "block" level accuracy.
	BalancedPowerAccuracy Priority = 102
	// LowPower requests "city" level accuracy.
	LowPower Priority = 104
	// NoPower only receives locations requested by other applications.
	NoPower Priority = 105
)

func (p Priority) String() string {
	switch p {
	case HighAccuracy:
		return "high_accuracy"
	case BalancedPowerAccuracy:
		return "balanced_power_accuracy"
	case LowPower:
		return "low_power"
	case NoPower:
		return "no_power"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case HighAccuracy, BalancedPowerAccuracy, LowPower, NoPower:
		return true
	}
	return false
}

// LocationRequest holds optional quality-of-service parameters for location
// updates. Nil fields fall back to defaults derived from the StartListening
// arguments.
type LocationRequest struct {
	// Priority of the request.
	Priority *Priority
	// Interval is the desired (inexact) interval for active updates.
	Interval *time.Duration
	// FastestInterval is the exact upper bound on the update rate.
	FastestInterval *time.Duration
	// SmallestDisplacement is the minimum distance in meters between updates.
	SmallestDisplacement *float64
}

// ListenerSettings carries the cross-platform listener hints. The fused
// provider honors DeferLocationUpdates/DeferralTime (as the batching wait) and
// ListenForSignificantChanges (as a low-power default priority); the rest only
// apply to other backends.
type ListenerSettings struct {
	AllowBackgroundUpdates            bool
	PauseLocationUpdatesAutomatically bool
	ListenForSignificantChanges       bool
	DeferLocationUpdates              bool
	DeferralDistanceMeters            float64
	DeferralTime                      time.Duration
}

// NativeRequest is a fully resolved request as sent to the native service.
type NativeRequest struct {
	Priority             Priority
	Interval             time.Duration
	FastestInterval      time.Duration
	SmallestDisplacement float64
	// MaxWaitTime lets the native service batch fixes; zero delivers each fix
	// as soon as it is available.
	MaxWaitTime time.Duration
}

// fastestIntervalDivisor mirrors the fused provider's own default of a
// fastest rate six times the requested interval.
const fastestIntervalDivisor = 6

// highAccuracyThreshold is the desired accuracy in meters at or below which
// the default priority becomes HighAccuracy.
const highAccuracyThreshold = 100

// BuildNativeRequest resolves req against the StartListening arguments.
// Every field absent from req takes its default independently:
//
//   - Priority: HighAccuracy when includeHeading is set or desiredAccuracy is
//     in (0, 100] meters; LowPower when settings ask for significant changes
//     only; BalancedPowerAccuracy otherwise.
//   - Interval: minimumTime.
//   - FastestInterval: Interval / 6.
//   - SmallestDisplacement: minimumDistance.
//
// Negative durations and distances are clamped to zero. An invalid explicit
// priority is replaced by the default one.
func BuildNativeRequest(req *LocationRequest, minimumTime time.Duration, minimumDistance float64, includeHeading bool, desiredAccuracy float64, settings *ListenerSettings) NativeRequest {
	if req == nil {
		req = &LocationRequest{}
	}

	out := NativeRequest{
		Priority:             defaultPriority(includeHeading, desiredAccuracy, settings),
		Interval:             clampDuration(minimumTime),
		SmallestDisplacement: clampFloat(minimumDistance),
	}
	if req.Priority != nil && req.Priority.Valid() {
		out.Priority = *req.Priority
	}
	if req.Interval != nil {
		out.Interval = clampDuration(*req.Interval)
	}
	out.FastestInterval = out.Interval / fastestIntervalDivisor
	if req.FastestInterval != nil {
		out.FastestInterval = clampDuration(*req.FastestInterval)
	}
	if req.SmallestDisplacement != nil {
		out.SmallestDisplacement = clampFloat(*req.SmallestDisplacement)
	}
	if settings != nil && settings.DeferLocationUpdates {
		out.MaxWaitTime = clampDuration(settings.DeferralTime)
	}
	return out
}

func defaultPriority(includeHeading bool, desiredAccuracy float64, settings *ListenerSettings) Priority {
	switch {
	case includeHeading:
		return HighAccuracy
	case desiredAccuracy > 0 && desiredAccuracy <= highAccuracyThreshold:
		return HighAccuracy
	case settings != nil && settings.ListenForSignificantChanges:
		return LowPower
	default:
		return BalancedPowerAccuracy
	}
}

func clampDuration(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func clampFloat(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
