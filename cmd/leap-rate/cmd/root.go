// Package cmd implements the leap-rate command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"leap-rate-go/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "leap-rate",
	Short: "Count the frames a motion tracker produces in a fixed window",
	Long: `leap-rate registers with a motion tracking device, collects frames until
5,000,000 device time units (5 seconds) have passed since the first frame,
and prints the number of frames received.

Frames can come from the Leap Motion service WebSocket, a ZeroMQ bridge
publishing CBOR frames, or a built-in simulator.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd.Flags(), cfg); err != nil {
			return err
		}
		return runSampling(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}
	return nil
}

func init() {
	defineFlags(rootCmd.Flags())
}

// defineFlags registers the command line flags. They are not bound to viper:
// they override file and env values only when set explicitly.
func defineFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./leap-rate.yaml)")
	flags.String("source", config.SourceLeapWS, "frame source (leapws, zmq, simulator)")
	flags.Int64("window", 5_000_000, "sampling window in device time units")
	flags.Duration("timeout", 0, "give up after this wall time (0 waits forever)")
	flags.String("format", "text", "report format (text, json, yaml)")
	flags.String("output-dir", "", "write sampled frames as CSV to this directory")
	flags.Bool("raw-log", false, "record raw ingest payloads (zmq source)")
	flags.Int("http-port", 0, "serve status and progress on this port (0 disables)")
	flags.Bool("pause", false, "wait for Enter before exiting when attached to a terminal")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")
}

// applyFlags copies explicitly set flags onto cfg.
// Priority: CLI flag > env var > config file > default.
func applyFlags(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("source") {
		cfg.Source, _ = flags.GetString("source")
	}
	if flags.Changed("window") {
		cfg.Sampling.Window, _ = flags.GetInt64("window")
	}
	if flags.Changed("timeout") {
		cfg.Sampling.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("raw-log") {
		cfg.Output.RawLog, _ = flags.GetBool("raw-log")
	}
	if flags.Changed("http-port") {
		cfg.Server.Port, _ = flags.GetInt("http-port")
	}
	if flags.Changed("pause") {
		cfg.Sampling.Pause, _ = flags.GetBool("pause")
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format, _ = flags.GetString("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}
	return nil
}
