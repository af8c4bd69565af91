package device

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"

	"leap-rate-go/internal/types"
)

// Hub is a Controller fed by a Source. Frames are held back until the first
// listener registers and are then delivered to every listener in
// registration order.
type Hub struct {
	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	listeners []Listener
	closers   []func() error
	closed    bool
	ready     chan struct{}
	readyOnce sync.Once

	received   atomic.Uint64
	dispatched atomic.Uint64
}

func NewHub(ctx context.Context, src Source, logger *slog.Logger) (*Hub, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	frames, err := src(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("start frame source: %w", err)
	}

	h := &Hub{
		logger: logger,
		cancel: cancel,
		ready:  make(chan struct{}),
	}
	h.wg.Add(1)
	go h.dispatch(ctx, frames)
	return h, nil
}

func (h *Hub) dispatch(ctx context.Context, frames <-chan types.Frame) {
	defer h.wg.Done()

	select {
	case <-ctx.Done():
		return
	case <-h.ready:
	}

	for frame := range frames {
		h.received.Add(1)
		h.mu.Lock()
		listeners := append([]Listener(nil), h.listeners...)
		h.mu.Unlock()
		if len(listeners) == 0 {
			continue
		}
		for _, l := range listeners {
			l.OnFrame(frame)
		}
		h.dispatched.Add(1)
	}
	h.logger.Debug("frame source closed", "received", h.received.Load())
}

func (h *Hub) AddListener(l Listener) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for _, existing := range h.listeners {
		if existing == l {
			return ErrListenerExists
		}
	}
	h.listeners = append(h.listeners, l)
	h.readyOnce.Do(func() { close(h.ready) })
	return nil
}

func (h *Hub) RemoveListener(l Listener) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	for i, existing := range h.listeners {
		if existing == l {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			return nil
		}
	}
	return ErrUnknownListener
}

// OnClose registers fn to run when the hub is closed, after the source has
// stopped.
func (h *Hub) OnClose(fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closers = append(h.closers, fn)
}

// Close stops the source and waits for the dispatcher to drain.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.listeners = nil
	closers := h.closers
	h.closers = nil
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()

	var result *multierror.Error
	for _, fn := range closers {
		if err := fn(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Received is the number of frames read from the source since the first
// listener registered.
func (h *Hub) Received() uint64 {
	return h.received.Load()
}

// Dispatched is the number of frames delivered to at least one listener.
func (h *Hub) Dispatched() uint64 {
	return h.dispatched.Load()
}
