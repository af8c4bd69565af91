package cmd

import (
	"context"
	"log/slog"

	"leap-rate-go/internal/config"
	"leap-rate-go/internal/device"
	"leap-rate-go/internal/ingest"
	"leap-rate-go/internal/leapws"
	"leap-rate-go/internal/output"
	"leap-rate-go/internal/simulator"
	"leap-rate-go/internal/types"
)

func newSource(cfg *config.Config, logger *slog.Logger, rawLog *output.RawLogWriter, stats *ingest.Stats) device.Source {
	switch cfg.Source {
	case config.SourceSimulator:
		return func(ctx context.Context) (<-chan types.Frame, error) {
			return simulator.Stream(ctx, simulator.Config{
				Rate:   cfg.Simulator.Rate,
				Jitter: cfg.Simulator.Jitter,
				Hands:  cfg.Simulator.Hands,
			}), nil
		}
	case config.SourceZMQ:
		opts := ingest.Options{
			LogEvery: cfg.ZMQ.LogEvery,
			Logger:   logger,
			Stats:    stats,
		}
		if rawLog != nil {
			opts.Recorder = rawLog
		}
		return func(ctx context.Context) (<-chan types.Frame, error) {
			return ingest.Stream(ctx, cfg.ZMQ.Endpoint, opts)
		}
	default:
		return func(ctx context.Context) (<-chan types.Frame, error) {
			return leapws.Stream(ctx, leapws.Config{
				URL:              cfg.LeapWS.URL,
				HandshakeTimeout: cfg.LeapWS.HandshakeTimeout,
				Background:       cfg.LeapWS.Background,
				Logger:           logger,
			})
		}
	}
}
