package geolocator

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Position is a single location fix.
type Position struct {
	// Latitude is the latitude in degrees.
	Latitude float64
	// Longitude is the longitude in degrees.
	Longitude float64
	// Altitude is the altitude in meters above the WGS84 ellipsoid.
	Altitude float64
	// Accuracy is the estimated horizontal accuracy in meters.
	Accuracy float64
	// AltitudeAccuracy is the estimated vertical accuracy in meters.
	AltitudeAccuracy float64
	// Heading is the direction of travel in degrees.
	Heading float64
	// Speed is the speed in meters per second.
	Speed float64
	// Timestamp is when the fix was taken.
	Timestamp time.Time
	// IsMocked reports whether the fix came from a mock provider.
	IsMocked bool
}

// Point returns the position as an orb point (longitude, latitude).
func (p Position) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// DistanceTo returns the great-circle distance to other in meters.
func (p Position) DistanceTo(other Position) float64 {
	return geo.DistanceHaversine(p.Point(), other.Point())
}

// LocationResult is one batch of fixes delivered by the native service,
// oldest first. Batches hold more than one fix when updates are deferred.
type LocationResult struct {
	Locations []Position
}

// LastLocation returns the most recent fix in the batch.
func (r LocationResult) LastLocation() (Position, bool) {
	if len(r.Locations) == 0 {
		return Position{}, false
	}
	return r.Locations[len(r.Locations)-1], true
}

// Address is a geocoding result.
type Address struct {
	FeatureName     string
	SubThoroughfare string
	Thoroughfare    string
	Locality        string
	AdminArea       string
	PostalCode      string
	CountryCode     string
	CountryName     string
	Latitude        float64
	Longitude       float64
}
