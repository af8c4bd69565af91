// Package config provides configuration management for leap-rate using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Frame sources.
const (
	SourceSimulator = "simulator"
	SourceLeapWS    = "leapws"
	SourceZMQ       = "zmq"
)

const (
	defaultWindow           = 5_000_000
	defaultSimulatorRate    = 110.0
	defaultSimulatorJitter  = 0.05
	defaultLeapURL          = "ws://127.0.0.1:6437/v6.json"
	defaultHandshakeTimeout = 5 * time.Second
	defaultZMQEndpoint      = "tcp://localhost:31001"
	defaultIngestLogEvery   = 100
)

type Config struct {
	Source    string          `mapstructure:"source"`
	Sampling  SamplingConfig  `mapstructure:"sampling"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	LeapWS    LeapWSConfig    `mapstructure:"leapws"`
	ZMQ       ZMQConfig       `mapstructure:"zmq"`
	Output    OutputConfig    `mapstructure:"output"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type SamplingConfig struct {
	Window int64 `mapstructure:"window"` // device time units
	// Timeout bounds the whole run in wall time. Zero waits forever.
	Timeout time.Duration `mapstructure:"timeout"`
	Pause   bool          `mapstructure:"pause"` // wait for Enter before exiting
}

type SimulatorConfig struct {
	Rate   float64 `mapstructure:"rate"`
	Jitter float64 `mapstructure:"jitter"`
	Hands  int     `mapstructure:"hands"`
}

type LeapWSConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	Background       bool          `mapstructure:"background"`
}

type ZMQConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	LogEvery int    `mapstructure:"log_every"`
}

type OutputConfig struct {
	Format    string `mapstructure:"format"` // text, json, yaml
	Dir       string `mapstructure:"dir"`    // empty disables the frame CSV
	RawLog    bool   `mapstructure:"raw_log"`
	RawLogDir string `mapstructure:"raw_log_dir"`
}

// ServerConfig configures the optional status server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// Load reads configuration from configPath (or the default search paths),
// environment variables prefixed LEAPRATE_, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("leap-rate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/leap-rate")
	}

	v.SetEnvPrefix("LEAPRATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("source", SourceLeapWS)

	v.SetDefault("sampling.window", defaultWindow)
	v.SetDefault("sampling.timeout", time.Duration(0))
	v.SetDefault("sampling.pause", false)

	v.SetDefault("simulator.rate", defaultSimulatorRate)
	v.SetDefault("simulator.jitter", defaultSimulatorJitter)
	v.SetDefault("simulator.hands", 1)

	v.SetDefault("leapws.url", defaultLeapURL)
	v.SetDefault("leapws.handshake_timeout", defaultHandshakeTimeout)
	v.SetDefault("leapws.background", true)

	v.SetDefault("zmq.endpoint", defaultZMQEndpoint)
	v.SetDefault("zmq.log_every", defaultIngestLogEvery)

	v.SetDefault("output.format", "text")
	v.SetDefault("output.dir", "")
	v.SetDefault("output.raw_log", false)
	v.SetDefault("output.raw_log_dir", "rawlog")

	v.SetDefault("server.port", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)
}

func (c *Config) Validate() error {
	switch c.Source {
	case SourceSimulator, SourceLeapWS, SourceZMQ:
	default:
		return fmt.Errorf("source must be one of %s, %s, %s", SourceSimulator, SourceLeapWS, SourceZMQ)
	}

	if c.Sampling.Window <= 0 {
		return errors.New("sampling.window must be positive")
	}
	if c.Sampling.Timeout < 0 {
		return errors.New("sampling.timeout must not be negative")
	}

	if c.Source == SourceSimulator && c.Simulator.Rate <= 0 {
		return errors.New("simulator.rate must be positive")
	}
	if c.Simulator.Jitter < 0 || c.Simulator.Jitter >= 1 {
		return errors.New("simulator.jitter must be in [0, 1)")
	}
	if c.Source == SourceZMQ && c.ZMQ.Endpoint == "" {
		return errors.New("zmq.endpoint is required for the zmq source")
	}
	if c.Source == SourceLeapWS && c.LeapWS.URL == "" {
		return errors.New("leapws.url is required for the leapws source")
	}

	switch c.Output.Format {
	case "text", "json", "yaml":
	default:
		return errors.New("output.format must be text, json or yaml")
	}

	const maxPort = 65535
	if c.Server.Port < 0 || c.Server.Port > maxPort {
		return fmt.Errorf("server.port must be between 0 and %d", maxPort)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return errors.New("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return errors.New("logging.format must be json or text")
	}
	return nil
}
