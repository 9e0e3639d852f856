package geolocator

import (
	"context"
	"time"
)

// CurrentPosition waits for a single fresh fix. The query runs on its own
// native registration, independent of the listening session, and that
// registration is always removed before returning. A positive timeout is
// combined with ctx; expiry yields KindTimeout and cancellation KindCanceled.
func (c *Controller) CurrentPosition(ctx context.Context, timeout time.Duration, includeHeading bool) (*Position, error) {
	const op = "geolocator.CurrentPosition"

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.ensurePermission(ctx, op); err != nil {
		return nil, err
	}

	fixes := make(chan Position, 1)
	cb := newFusedCallback(nil, func(pos Position) {
		select {
		case fixes <- pos:
		default:
		}
	})
	req := NativeRequest{
		Priority: defaultPriority(includeHeading, c.DesiredAccuracy(), nil),
	}

	err := c.client.RequestLocationUpdates(ctx, req, cb, inline)
	defer c.removeCallback(cb, "query", op)
	if err != nil {
		return nil, nativeError(op, err)
	}

	select {
	case pos := <-fixes:
		return &pos, nil
	case <-ctx.Done():
		return nil, contextError(op, ctx.Err())
	}
}
