package simulator

import (
	"context"
	"math/rand"
	"time"

	"leap-rate-go/internal/types"
)

type Config struct {
	// Rate is the nominal frame rate in Hz.
	Rate float64
	// Jitter is the maximum deviation of a frame interval, as a fraction of
	// the nominal interval.
	Jitter float64
	// StartTimestamp is the device timestamp of the first frame.
	StartTimestamp int64
	// Hands is the number of hands reported in every frame.
	Hands int
}

// Stream emits synthetic frames paced by a wall clock ticker. Device
// timestamps advance by the nominal interval plus jitter.
func Stream(ctx context.Context, cfg Config) <-chan types.Frame {
	out := make(chan types.Frame)
	go func() {
		defer close(out)

		rate := cfg.Rate
		if rate <= 0 {
			rate = 110
		}
		interval := time.Duration(float64(time.Second) / rate)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		nominal := float64(interval.Microseconds())
		timestamp := cfg.StartTimestamp
		var id int64

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				frame := types.Frame{
					ID:               id,
					Timestamp:        timestamp,
					CurrentFrameRate: rate,
					Hands:            cfg.Hands,
					Pointables:       cfg.Hands * 5,
				}
				select {
				case <-ctx.Done():
					return
				case out <- frame:
				}

				id++
				step := nominal
				if cfg.Jitter > 0 {
					step += (rng.Float64()*2 - 1) * cfg.Jitter * nominal
				}
				if step < 1 {
					step = 1
				}
				timestamp += int64(step)
			}
		}
	}()

	return out
}

// Sequence replays frames as fast as the receiver takes them, then closes.
func Sequence(ctx context.Context, frames []types.Frame) <-chan types.Frame {
	out := make(chan types.Frame)
	go func() {
		defer close(out)
		for _, frame := range frames {
			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}()
	return out
}
