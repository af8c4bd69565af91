package sampler

import (
	"context"
	"errors"
	"fmt"

	"leap-rate-go/internal/device"
)

// ErrIncomplete is returned by Run when the context ends before the window closes.
var ErrIncomplete = errors.New("sampling window did not complete")

// Run registers s with ctrl, blocks until the window closes, then reads the
// frame count and unregisters. Without a context deadline and with a silent
// device it blocks forever.
func Run(ctx context.Context, ctrl device.Controller, s *Sampler) (int, error) {
	if err := ctrl.AddListener(s); err != nil {
		return 0, fmt.Errorf("add listener: %w", err)
	}

	var runErr error
	select {
	case <-s.Done():
	case <-ctx.Done():
		runErr = fmt.Errorf("%w: %w", ErrIncomplete, ctx.Err())
	}
	count := s.Count()

	if err := ctrl.RemoveListener(s); err != nil && runErr == nil {
		runErr = fmt.Errorf("remove listener: %w", err)
	}
	return count, runErr
}
