// Package sampler counts the frames a device produces over a fixed window of
// device time, measured from the first frame it sees.
package sampler

import (
	"sync"

	"leap-rate-go/internal/types"
)

// DefaultWindow is the sampling window in device time units (5s in µs).
const DefaultWindow int64 = 5_000_000

type State int

const (
	WaitingForFirstFrame State = iota
	Sampling
	Done
)

func (s State) String() string {
	switch s {
	case WaitingForFirstFrame:
		return "waiting_for_first_frame"
	case Sampling:
		return "sampling"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type Option func(*Sampler)

// WithWindow overrides DefaultWindow. Non-positive values are ignored.
func WithWindow(window int64) Option {
	return func(s *Sampler) {
		if window > 0 {
			s.window = window
		}
	}
}

// Sampler is a device listener. It buffers every frame it is handed, including
// frames that arrive after the window closed but before it is unregistered.
type Sampler struct {
	window int64

	mu           sync.Mutex
	frames       []types.Frame
	start        int64
	started      bool
	windowFrames int
	done         chan struct{}
}

func New(opts ...Option) *Sampler {
	s := &Sampler{
		window: DefaultWindow,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnFrame records a frame and closes the window once a frame is more than
// window units past the first one.
func (s *Sampler) OnFrame(frame types.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = append(s.frames, frame)
	if !s.started {
		s.start = frame.Timestamp
		s.started = true
		return
	}
	if s.windowFrames > 0 {
		return
	}
	if frame.Timestamp-s.start > s.window {
		s.windowFrames = len(s.frames)
		close(s.done)
	}
}

// Done is closed when the sampling window has elapsed. It is never reopened.
func (s *Sampler) Done() <-chan struct{} {
	return s.done
}

func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.windowFrames > 0:
		return Done
	case s.started:
		return Sampling
	default:
		return WaitingForFirstFrame
	}
}

// Count is the number of frames buffered so far.
func (s *Sampler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// WindowCount is the number of frames buffered up to and including the frame
// that closed the window, or 0 while the window is still open.
func (s *Sampler) WindowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windowFrames
}

// Start returns the timestamp of the first frame.
func (s *Sampler) Start() (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start, s.started
}

func (s *Sampler) Window() int64 {
	return s.window
}

// Frames returns a copy of the buffer in arrival order.
func (s *Sampler) Frames() []types.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Frame, len(s.frames))
	copy(out, s.frames)
	return out
}
