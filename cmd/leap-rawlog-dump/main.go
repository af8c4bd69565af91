package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"leap-rate-go/internal/output"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		path  string
		limit int
	)
	cmd := &cobra.Command{
		Use:          "leap-rawlog-dump",
		Short:        "Print raw ingest records captured with leap-rate --raw-log as JSON",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open rawlog: %w", err)
			}
			defer f.Close()
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			return dump(f, cmd.OutOrStdout(), logger, limit)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "path to rawlog .bin file")
	cmd.Flags().IntVar(&limit, "limit", 1, "number of records to dump (0 for all)")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func dump(r io.Reader, w io.Writer, logger *slog.Logger, limit int) error {
	reader, err := output.NewRawLogReader(r)
	if err != nil {
		return err
	}

	for count := 0; limit <= 0 || count < limit; count++ {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", count, err)
		}
		if len(record.Payload) == 0 {
			logger.Warn("empty payload", "record", count)
			continue
		}

		var decoded any
		if err := cbor.Unmarshal(record.Payload, &decoded); err != nil {
			logger.Warn("CBOR decode error", "record", count, "error", err)
			continue
		}

		pretty, err := json.MarshalIndent(output.NormalizeJSONValue(decoded), "", "  ")
		if err != nil {
			logger.Warn("JSON encode error", "record", count, "error", err)
			continue
		}

		logger.Info("record", "index", count, "timestamp", record.Time.Format(time.RFC3339Nano), "size", len(record.Payload))
		if _, err := fmt.Fprintln(w, string(pretty)); err != nil {
			return err
		}
	}
	return nil
}
