// Package leapws reads tracking frames from the Leap Motion service's
// WebSocket JSON protocol.
package leapws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"leap-rate-go/internal/types"
)

const DefaultURL = "ws://127.0.0.1:6437/v6.json"

type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	// Background asks the service to keep sending frames while this process
	// does not have focus.
	Background bool
	Logger     *slog.Logger
}

type message struct {
	ServiceVersion   string            `json:"serviceVersion"`
	Version          int               `json:"version"`
	Event            *event            `json:"event"`
	ID               *int64            `json:"id"`
	Timestamp        int64             `json:"timestamp"`
	CurrentFrameRate float64           `json:"currentFrameRate"`
	Hands            []json.RawMessage `json:"hands"`
	Pointables       []json.RawMessage `json:"pointables"`
}

type event struct {
	Type  string         `json:"type"`
	State map[string]any `json:"state"`
}

var errNoFrame = errors.New("message is not a frame")

// Stream dials the service, performs the greeting exchange and returns the
// decoded frames. The channel closes when ctx ends or the connection drops.
func Stream(ctx context.Context, cfg Config) (<-chan types.Frame, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	if err := greet(conn, cfg, logger); err != nil {
		_ = conn.Close()
		return nil, err
	}

	out := make(chan types.Frame, 128)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	go func() {
		defer close(out)
		defer close(stop)
		for {
			messageType, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("leap service connection closed", "error", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			frame, err := decodeMessage(payload, logger)
			if err != nil {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}()

	return out, nil
}

func greet(conn *websocket.Conn, cfg Config, logger *slog.Logger) error {
	_ = conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))
	var hello message
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read service greeting: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	logger.Info("connected to leap service", "service_version", hello.ServiceVersion, "protocol", hello.Version)

	controls := []map[string]any{
		{"enableGestures": false},
		{"background": cfg.Background},
		{"focused": true},
	}
	for _, control := range controls {
		if err := conn.WriteJSON(control); err != nil {
			return fmt.Errorf("send control message: %w", err)
		}
	}
	return nil
}

func decodeMessage(payload []byte, logger *slog.Logger) (types.Frame, error) {
	var msg message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return types.Frame{}, fmt.Errorf("decode message: %w", err)
	}
	if msg.Event != nil {
		logger.Debug("leap service event", "type", msg.Event.Type, "state", msg.Event.State)
		return types.Frame{}, errNoFrame
	}
	if msg.ID == nil {
		return types.Frame{}, errNoFrame
	}
	return types.Frame{
		ID:               *msg.ID,
		Timestamp:        msg.Timestamp,
		CurrentFrameRate: msg.CurrentFrameRate,
		Hands:            len(msg.Hands),
		Pointables:       len(msg.Pointables),
	}, nil
}
