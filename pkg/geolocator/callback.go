package geolocator

// fusedCallback is registered with the native service for one session. It
// holds no state besides its two sinks and takes no locks; whether an event is
// still wanted is decided by the sinks.
type fusedCallback struct {
	availabilityChanged func(available bool)
	positionChanged     func(Position)
}

func newFusedCallback(availabilityChanged func(bool), positionChanged func(Position)) *fusedCallback {
	return &fusedCallback{
		availabilityChanged: availabilityChanged,
		positionChanged:     positionChanged,
	}
}

// OnLocationAvailability raises the availability-changed event.
func (c *fusedCallback) OnLocationAvailability(available bool) {
	if c.availabilityChanged != nil {
		c.availabilityChanged(available)
	}
}

// OnLocationResult raises one position-changed event for the batch's most
// recent fix. Empty batches are ignored.
func (c *fusedCallback) OnLocationResult(result LocationResult) {
	pos, ok := result.LastLocation()
	if !ok || c.positionChanged == nil {
		return
	}
	c.positionChanged(pos)
}
