// Package device adapts frame streams from the supported tracking sources to
// the listener-style controller the sampler registers with.
package device

import (
	"context"
	"errors"

	"leap-rate-go/internal/types"
)

var (
	ErrClosed          = errors.New("controller is closed")
	ErrListenerExists  = errors.New("listener already registered")
	ErrUnknownListener = errors.New("listener not registered")
)

// Listener receives frames from a Controller. OnFrame is called from the
// controller's dispatch goroutine, never concurrently for the same controller.
type Listener interface {
	OnFrame(frame types.Frame)
}

type Controller interface {
	AddListener(l Listener) error
	RemoveListener(l Listener) error
	Close() error
}

// Source starts a frame stream. The channel is closed when ctx ends or the
// underlying device goes away.
type Source func(ctx context.Context) (<-chan types.Frame, error)
