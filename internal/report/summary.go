// Package report turns a finished sampling run into a summary and renders it.
package report

import (
	"math"

	"leap-rate-go/internal/types"
)

type Summary struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	Source   string `json:"source" yaml:"source"`
	Window   int64  `json:"window_us" yaml:"window_us"`
	Complete bool   `json:"complete" yaml:"complete"`

	// Frames is the buffer length when the run ended. It can exceed
	// WindowFrames by the frames delivered between the window closing and
	// the listener being removed.
	Frames       int `json:"frames" yaml:"frames"`
	WindowFrames int `json:"window_frames" yaml:"window_frames"`
	LateFrames   int `json:"late_frames" yaml:"late_frames"`

	FirstTimestamp int64   `json:"first_timestamp" yaml:"first_timestamp"`
	LastTimestamp  int64   `json:"last_timestamp" yaml:"last_timestamp"`
	SpanMicros     int64   `json:"span_us" yaml:"span_us"`
	Rate           float64 `json:"rate_hz" yaml:"rate_hz"`

	IntervalMinMicros  int64   `json:"interval_min_us" yaml:"interval_min_us"`
	IntervalMaxMicros  int64   `json:"interval_max_us" yaml:"interval_max_us"`
	IntervalMeanMicros float64 `json:"interval_mean_us" yaml:"interval_mean_us"`
}

// Summarize computes timing statistics. Rate and intervals use the frames up
// to and including the one that closed the window, or all frames when the
// window never closed (windowFrames == 0).
func Summarize(runID, source string, window int64, frames []types.Frame, windowFrames int) Summary {
	s := Summary{
		RunID:        runID,
		Source:       source,
		Window:       window,
		Complete:     windowFrames > 0,
		Frames:       len(frames),
		WindowFrames: windowFrames,
	}
	if windowFrames > 0 {
		s.LateFrames = len(frames) - windowFrames
	}
	if len(frames) == 0 {
		return s
	}

	measured := frames
	if windowFrames > 0 && windowFrames <= len(frames) {
		measured = frames[:windowFrames]
	}

	s.FirstTimestamp = measured[0].Timestamp
	s.LastTimestamp = measured[len(measured)-1].Timestamp
	s.SpanMicros = s.LastTimestamp - s.FirstTimestamp
	if s.SpanMicros > 0 {
		s.Rate = float64(len(measured)-1) / (float64(s.SpanMicros) / 1e6)
	}

	if len(measured) < 2 {
		return s
	}
	minVal := int64(math.MaxInt64)
	maxVal := int64(math.MinInt64)
	var sum float64
	for i := 1; i < len(measured); i++ {
		d := measured[i].Timestamp - measured[i-1].Timestamp
		if d < minVal {
			minVal = d
		}
		if d > maxVal {
			maxVal = d
		}
		sum += float64(d)
	}
	s.IntervalMinMicros = minVal
	s.IntervalMaxMicros = maxVal
	s.IntervalMeanMicros = sum / float64(len(measured)-1)
	return s
}
