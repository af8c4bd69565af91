package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"leap-rate-go/internal/config"
	"leap-rate-go/internal/device"
	"leap-rate-go/internal/ingest"
	"leap-rate-go/internal/observability"
	"leap-rate-go/internal/output"
	"leap-rate-go/internal/report"
	"leap-rate-go/internal/sampler"
	"leap-rate-go/internal/server"
)

const progressEvery = 250 * time.Millisecond

func runSampling(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.NewLogger(cfg.Logging, stderr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "source", cfg.Source)

	var rawLog *output.RawLogWriter
	if cfg.Output.RawLog {
		if cfg.Source != config.SourceZMQ {
			logger.Warn("raw log only records the zmq source; ignoring")
		} else {
			writer, err := output.NewRawLogWriter(cfg.Output.RawLogDir, "raw_cbor")
			if err != nil {
				return fmt.Errorf("start raw log: %w", err)
			}
			rawLog = writer
			logger.Info("recording raw payloads", "path", writer.Path())
		}
	}

	stats := &ingest.Stats{}
	src := newSource(cfg, logger, rawLog, stats)
	hub, err := device.NewHub(ctx, src, logger)
	if err != nil {
		if rawLog != nil {
			_ = rawLog.Close()
		}
		return err
	}
	if rawLog != nil {
		hub.OnClose(rawLog.Close)
	}
	defer func() {
		if err := hub.Close(); err != nil {
			logger.Warn("controller close failed", "error", err)
		}
	}()

	s := sampler.New(sampler.WithWindow(cfg.Sampling.Window))

	runCtx := ctx
	if cfg.Sampling.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Sampling.Timeout)
		defer cancel()
	}

	finished := make(chan struct{})
	if cfg.Server.Port > 0 {
		startStatusServer(ctx, cfg, statusFunc(s, hub, stats), logger, finished)
	}

	logger.Info("sampling started", "window", cfg.Sampling.Window)
	started := time.Now()
	count, runErr := sampler.Run(runCtx, hub, s)
	close(finished)

	frames := s.Frames()
	if len(frames) > count {
		frames = frames[:count]
	}
	summary := report.Summarize(runID, cfg.Source, cfg.Sampling.Window, frames, s.WindowCount())

	if runErr != nil {
		logger.Error("sampling did not complete",
			"error", runErr,
			"state", s.State().String(),
			"frames", count,
			"elapsed", time.Since(started).Round(time.Millisecond),
		)
		return runErr
	}
	logger.Info("sampling done",
		"frames", summary.Frames,
		"late_frames", summary.LateFrames,
		"rate_hz", summary.Rate,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if err := report.Encode(stdout, cfg.Output.Format, summary); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if cfg.Output.Dir != "" {
		start, _ := s.Start()
		path, err := output.WriteFrames(cfg.Output.Dir, output.Timestamp(), runID, frames, start)
		if err != nil {
			logger.Error("frame log write failed", "error", err)
		} else {
			logger.Info("wrote frame log", "path", path)
		}
	}

	if cfg.Sampling.Pause {
		waitForEnter(stderr)
	}
	return nil
}

func statusFunc(s *sampler.Sampler, hub *device.Hub, stats *ingest.Stats) func() map[string]any {
	return func() map[string]any {
		start, _ := s.Start()
		return map[string]any{
			"state":            s.State().String(),
			"frames":           s.Count(),
			"window_frames":    s.WindowCount(),
			"start_timestamp":  start,
			"received_total":   hub.Received(),
			"dispatched_total": hub.Dispatched(),
			"decoded_total":    stats.Decoded(),
			"decode_failures":  stats.DecodeFailures(),
		}
	}
}

func startStatusServer(ctx context.Context, cfg *config.Config, status func() map[string]any, logger *slog.Logger, finished <-chan struct{}) {
	messages := make(chan any, 16)
	srv := server.New(*cfg, status, logger)
	go func() {
		if err := srv.Run(ctx, messages); err != nil {
			logger.Error("status server stopped", "error", err)
		}
	}()

	go func() {
		defer close(messages)
		ticker := time.NewTicker(progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-finished:
				progress := status()
				progress["type"] = "progress"
				select {
				case messages <- progress:
				case <-ctx.Done():
				}
				return
			case <-ticker.C:
				progress := status()
				progress["type"] = "progress"
				select {
				case messages <- progress:
				default:
				}
			}
		}
	}()
}

// waitForEnter blocks for one line of operator input. It is a no-op when
// stdin is not a terminal.
func waitForEnter(prompt io.Writer) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	_, _ = fmt.Fprint(prompt, "Press Enter to exit")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}
