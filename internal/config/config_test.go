package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Source:    SourceSimulator,
		Sampling:  SamplingConfig{Window: 5_000_000},
		Simulator: SimulatorConfig{Rate: 110},
		LeapWS:    LeapWSConfig{URL: defaultLeapURL},
		ZMQ:       ZMQConfig{Endpoint: defaultZMQEndpoint},
		Output:    OutputConfig{Format: "text"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, SourceLeapWS, cfg.Source)
	assert.Equal(t, int64(5_000_000), cfg.Sampling.Window)
	assert.Equal(t, time.Duration(0), cfg.Sampling.Timeout)
	assert.False(t, cfg.Sampling.Pause)

	assert.InDelta(t, 110.0, cfg.Simulator.Rate, 1e-9)
	assert.Equal(t, "ws://127.0.0.1:6437/v6.json", cfg.LeapWS.URL)
	assert.Equal(t, 5*time.Second, cfg.LeapWS.HandshakeTimeout)
	assert.True(t, cfg.LeapWS.Background)
	assert.Equal(t, "tcp://localhost:31001", cfg.ZMQ.Endpoint)
	assert.Equal(t, 100, cfg.ZMQ.LogEvery)

	assert.Equal(t, "text", cfg.Output.Format)
	assert.Empty(t, cfg.Output.Dir)
	assert.Equal(t, 0, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leap-rate.yaml")
	content := `
source: zmq
sampling:
  window: 1000000
  timeout: 30s
zmq:
  endpoint: tcp://10.0.0.5:5555
output:
  format: json
  dir: /tmp/frames
server:
  port: 8899
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, SourceZMQ, cfg.Source)
	assert.Equal(t, int64(1_000_000), cfg.Sampling.Window)
	assert.Equal(t, 30*time.Second, cfg.Sampling.Timeout)
	assert.Equal(t, "tcp://10.0.0.5:5555", cfg.ZMQ.Endpoint)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "/tmp/frames", cfg.Output.Dir)
	assert.Equal(t, 8899, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.ZMQ.LogEvery, "unset keys keep their defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LEAPRATE_SOURCE", "simulator")
	t.Setenv("LEAPRATE_SIMULATOR_RATE", "240")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, SourceSimulator, cfg.Source)
	assert.InDelta(t, 240.0, cfg.Simulator.Rate, 1e-9)
}

func TestLoad_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leap-rate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source: carrier-pigeon\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validating config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "unknown source", mutate: func(c *Config) { c.Source = "usb" }, wantErr: "source"},
		{name: "zero window", mutate: func(c *Config) { c.Sampling.Window = 0 }, wantErr: "sampling.window"},
		{name: "negative timeout", mutate: func(c *Config) { c.Sampling.Timeout = -time.Second }, wantErr: "sampling.timeout"},
		{name: "simulator rate", mutate: func(c *Config) { c.Simulator.Rate = 0 }, wantErr: "simulator.rate"},
		{name: "jitter", mutate: func(c *Config) { c.Simulator.Jitter = 1 }, wantErr: "simulator.jitter"},
		{name: "zmq endpoint", mutate: func(c *Config) { c.Source = SourceZMQ; c.ZMQ.Endpoint = "" }, wantErr: "zmq.endpoint"},
		{name: "leap url", mutate: func(c *Config) { c.Source = SourceLeapWS; c.LeapWS.URL = "" }, wantErr: "leapws.url"},
		{name: "format", mutate: func(c *Config) { c.Output.Format = "csv" }, wantErr: "output.format"},
		{name: "port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "server.port"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, wantErr: "logging.level"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
