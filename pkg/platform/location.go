package platform

// LocationService exposes the runtime permissions guarding location access.
// Position acquisition itself goes through the geolocator package, which
// drives the native fused location provider over its own channels.
type LocationService struct {
	// Permission provides access to location permission levels.
	Permission struct {
		// WhenInUse permission for foreground location access.
		WhenInUse Permission
		// Always permission for background location access.
		// On iOS, WhenInUse must be granted before requesting Always.
		Always Permission
	}
}

// Location is the singleton location service.
var Location *LocationService

func init() {
	Location = &LocationService{}
	Location.Permission.WhenInUse = newPermission("location")
	Location.Permission.Always = newPermission("location_always")
}
