package ops

import (
	"context"
	"errors"

	"tinywii/internal/services"
)

// ErrAlreadyInstalled reports an install whose destination already exists.
var ErrAlreadyInstalled = errors.New("game already installed")

var markers = []error{
	services.ErrIO,
	services.ErrFormat,
	services.ErrNetwork,
	services.ErrConfiguration,
	services.ErrCancelled,
	services.ErrInternal,
}

// wrap tags err for operation op. Context cancellation becomes ErrCancelled,
// errors already carrying a marker keep it, and the rest are ErrIO.
func wrap(op, detail string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrCancelled, "ops", op, detail, err)
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return err
		}
	}
	return services.Wrap(services.ErrIO, "ops", op, detail, err)
}
