package sampler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leap-rate-go/internal/types"
)

func feed(s *Sampler, timestamps ...int64) {
	for i, ts := range timestamps {
		s.OnFrame(types.Frame{ID: int64(i), Timestamp: ts})
	}
}

func isDone(s *Sampler) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func TestSamplerInitialState(t *testing.T) {
	s := New()

	assert.Equal(t, WaitingForFirstFrame, s.State())
	assert.Equal(t, 0, s.Count())
	assert.Equal(t, DefaultWindow, s.Window())
	_, started := s.Start()
	assert.False(t, started)
	assert.False(t, isDone(s))
}

func TestSamplerDoneAfterWindow(t *testing.T) {
	s := New()

	feed(s, 0)
	assert.Equal(t, Sampling, s.State())
	start, started := s.Start()
	assert.True(t, started)
	assert.Equal(t, int64(0), start)

	feed(s, 5_000_001)
	assert.Equal(t, Done, s.State())
	assert.True(t, isDone(s))
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 2, s.WindowCount())
}

func TestSamplerSingleFrame(t *testing.T) {
	s := New()
	feed(s, 0)

	assert.Equal(t, Sampling, s.State())
	assert.Equal(t, 1, s.Count())
	assert.False(t, isDone(s))
}

func TestSamplerBoundaryIsExclusive(t *testing.T) {
	s := New()
	feed(s, 1000, 2000, 4_000_000, 5_001_000)

	assert.Equal(t, Sampling, s.State(), "elapsed equal to the window must not close it")
	assert.Equal(t, 4, s.Count())

	feed(s, 5_001_001)
	assert.Equal(t, Done, s.State())
	assert.Equal(t, 5, s.WindowCount())
}

func TestSamplerDoneOnFirstFrameBeyondWindow(t *testing.T) {
	timestamps := []int64{10, 1_000_000, 2_500_000, 4_999_999, 5_000_010, 5_000_011, 6_000_000}
	s := New()

	for i, ts := range timestamps {
		s.OnFrame(types.Frame{ID: int64(i), Timestamp: ts})
		elapsed := ts - timestamps[0]
		if elapsed <= DefaultWindow {
			require.False(t, isDone(s), "frame %d closed the window early", i)
		}
		if i == 5 {
			require.True(t, isDone(s), "window should close on frame %d", i)
		}
	}
	assert.Equal(t, 6, s.WindowCount())
}

func TestSamplerKeepsBufferingAfterDone(t *testing.T) {
	s := New()
	feed(s, 0, 5_000_001, 5_000_002, 5_000_003)

	assert.Equal(t, Done, s.State())
	assert.Equal(t, 4, s.Count())
	assert.Equal(t, 2, s.WindowCount(), "window count stays at the closing frame")

	frames := s.Frames()
	require.Len(t, frames, 4)
	for i, frame := range frames {
		assert.Equal(t, int64(i), frame.ID, "frames must stay in arrival order")
	}
}

func TestSamplerNeverDoneWithinWindow(t *testing.T) {
	s := New()
	for ts := int64(0); ts <= DefaultWindow; ts += 9_000 {
		s.OnFrame(types.Frame{Timestamp: ts})
	}
	assert.Equal(t, Sampling, s.State())
	assert.False(t, isDone(s))
}

func TestSamplerZeroTimestampIsAValidStart(t *testing.T) {
	s := New()
	feed(s, 0, 0, 3_000_000)

	start, started := s.Start()
	assert.True(t, started)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, Sampling, s.State())
}

func TestSamplerCustomWindow(t *testing.T) {
	s := New(WithWindow(100))
	feed(s, 50, 150)
	assert.Equal(t, Sampling, s.State())
	feed(s, 151)
	assert.Equal(t, Done, s.State())

	ignored := New(WithWindow(-1))
	assert.Equal(t, DefaultWindow, ignored.Window())
}

func TestSamplerFramesIsACopy(t *testing.T) {
	s := New()
	feed(s, 1, 2)

	frames := s.Frames()
	frames[0].Timestamp = 99
	assert.Equal(t, int64(1), s.Frames()[0].Timestamp)
}

func TestSamplerConcurrentReaders(t *testing.T) {
	s := New(WithWindow(1_000))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ts := int64(0); ts <= 2_000; ts += 10 {
			s.OnFrame(types.Frame{Timestamp: ts})
		}
	}()

	<-s.Done()
	assert.GreaterOrEqual(t, s.Count(), s.WindowCount())
	wg.Wait()
	assert.Equal(t, 201, s.Count())
	assert.Equal(t, 102, s.WindowCount())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "waiting_for_first_frame", WaitingForFirstFrame.String())
	assert.Equal(t, "sampling", Sampling.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "unknown", State(42).String())
}
