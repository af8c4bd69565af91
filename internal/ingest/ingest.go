package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"leap-rate-go/internal/types"
)

// recvTimeout bounds a blocking receive so cancellation is noticed.
const recvTimeout = 250 * time.Millisecond

// RawRecorder receives every payload read from the socket, before decoding.
type RawRecorder interface {
	Record(payload []byte) error
}

type Options struct {
	// LogEvery logs only every Nth receive or decode problem.
	LogEvery int
	Recorder RawRecorder
	Logger   *slog.Logger
	// Stats, when set, is updated as messages are decoded.
	Stats *Stats
}

// Stats counts decode outcomes for one stream. It is safe for concurrent use.
type Stats struct {
	decodeFailures atomic.Uint64
	decoded        atomic.Uint64
}

// DecodeFailures is the number of messages that could not be turned into a frame.
func (s *Stats) DecodeFailures() uint64 {
	return s.decodeFailures.Load()
}

func (s *Stats) Decoded() uint64 {
	return s.decoded.Load()
}

// Stream returns a channel of frames read from a bridge process that
// publishes the vendor SDK's frames over ZeroMQ. Messages are CBOR maps:
// { "type": "frame", "id": <int>, "timestamp": <int>, "current_frame_rate": <float>, "hands": <int>, "pointables": <int> }
func Stream(ctx context.Context, endpoint string, opts Options) (<-chan types.Frame, error) {
	if opts.LogEvery < 1 {
		opts.LogEvery = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stats == nil {
		opts.Stats = &Stats{}
	}
	stats := opts.Stats
	limiter := &logLimiter{every: opts.LogEvery, logger: opts.Logger}

	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, fmt.Errorf("create zmq socket: %w", err)
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("set receive timeout: %w", err)
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}

	out := make(chan types.Frame, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				limiter.warn("ingest recv error", "error", err)
				continue
			}
			if opts.Recorder != nil {
				if err := opts.Recorder.Record(msg); err != nil {
					limiter.warn("raw log write failed", "error", err)
				}
			}

			frame, ok, err := decodeFrame(msg)
			if err != nil {
				stats.decodeFailures.Add(1)
				limiter.warn("ingest decode failed", "error", err)
				continue
			}
			if !ok {
				continue
			}
			stats.decoded.Add(1)

			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}()

	return out, nil
}

var errNotFrame = errors.New("not a frame message")

// decodeFrame returns ok=false without an error for well-formed messages that
// are not frames (device events, service status).
func decodeFrame(msg []byte) (types.Frame, bool, error) {
	var payload map[string]any
	if err := cbor.Unmarshal(msg, &payload); err != nil {
		return types.Frame{}, false, fmt.Errorf("cbor: %w", err)
	}

	msgType, _ := payload["type"].(string)
	switch msgType {
	case "frame":
	case "":
		return types.Frame{}, false, errNotFrame
	default:
		return types.Frame{}, false, nil
	}

	id, err := toInt64(payload["id"])
	if err != nil {
		return types.Frame{}, false, fmt.Errorf("invalid id: %w", err)
	}
	timestamp, err := toInt64(payload["timestamp"])
	if err != nil {
		return types.Frame{}, false, fmt.Errorf("invalid timestamp: %w", err)
	}

	frame := types.Frame{ID: id, Timestamp: timestamp}
	if v, ok := payload["current_frame_rate"]; ok {
		if rate, err := toFloat(v); err == nil {
			frame.CurrentFrameRate = rate
		}
	}
	if v, ok := payload["hands"]; ok {
		if n, err := toInt64(v); err == nil {
			frame.Hands = int(n)
		}
	}
	if v, ok := payload["pointables"]; ok {
		if n, err := toInt64(v); err == nil {
			frame.Pointables = int(n)
		}
	}
	return frame, true, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", n)
		}
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case nil:
		return 0, errors.New("missing value")
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}

type logLimiter struct {
	every   int
	counter atomic.Uint64
	logger  *slog.Logger
}

func (l *logLimiter) warn(msg string, args ...any) {
	n := l.counter.Add(1)
	if n%uint64(l.every) == 0 {
		l.logger.Warn(msg, append(args, "occurrences", n)...)
	}
}
