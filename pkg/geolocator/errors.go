package geolocator

import (
	"context"
	stderrors "errors"

	"github.com/go-drift/geolocator/pkg/errors"
	"github.com/go-drift/geolocator/pkg/platform"
)

// Error codes the native fused provider reports through ChannelError.
const (
	CodeServiceUnavailable = "service_unavailable"
	CodeNoLocation         = "no_location"
	CodePermissionDenied   = "permission_denied"
)

// nativeError classifies a failure of the native service under op.
func nativeError(op string, err error) error {
	if err == nil {
		return nil
	}

	var typed *errors.Error
	if stderrors.As(err, &typed) {
		e := errors.New(op, typed.Kind, err)
		e.Channel = typed.Channel
		return e
	}

	kind := errors.KindPlatform
	switch code := platform.ChannelErrorCode(err); {
	case code != "":
		switch code {
		case CodeServiceUnavailable, CodeNoLocation:
			kind = errors.KindPositionUnavailable
		case CodePermissionDenied:
			kind = errors.KindUnauthorized
		}
	case stderrors.Is(err, platform.ErrPlatformUnavailable):
		kind = errors.KindPositionUnavailable
	case stderrors.Is(err, platform.ErrTimeout), stderrors.Is(err, context.DeadlineExceeded):
		kind = errors.KindTimeout
	case stderrors.Is(err, platform.ErrCanceled), stderrors.Is(err, context.Canceled):
		kind = errors.KindCanceled
	}
	return errors.New(op, kind, err)
}
