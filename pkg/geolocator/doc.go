// Package geolocator exposes a unified "get device location" API and delegates
// position acquisition to the platform's native fused location provider.
//
// A Controller owns at most one listening session at a time. StartListening
// and StopListening are serialized by a context-aware lock. A replace
// registers the new callback first and only then retires the previous
// session, so IsListening stays true throughout and a failed registration
// leaves the previous session in place.
//
// Native callbacks arrive on the dispatcher supplied at registration time.
// Only the installed session publishes. Each delivery holds the session's
// read lock across its liveness check and its handlers, and retiring a
// session waits (bounded by the teardown timeout) for those deliveries, so
// once StartListening or StopListening returns no handler observes an event
// from the session it replaced:
//
//	c := geolocator.Current()
//	unsubscribe := c.PositionChanged().Listen(func(p geolocator.Position) {
//		fmt.Println(p.Latitude, p.Longitude)
//	})
//	defer unsubscribe()
//	if _, err := c.StartListening(ctx, 5*time.Second, 10, false, nil, nil); err != nil {
//		return err
//	}
package geolocator
