package output

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"leap-rate-go/internal/types"
)

// WriteFrames writes one CSV row per sampled frame and returns the file path.
// elapsed_us is measured from start.
func WriteFrames(outputDir string, runTimestamp string, runID string, frames []types.Frame, start int64) (string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	filename := filepath.Join(outputDir, fmt.Sprintf("%s_frames_%s.csv", runTimestamp, runID))
	f, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)

	_, _ = fmt.Fprintln(w, "frame_id, timestamp, elapsed_us, frame_rate, hands, pointables")
	for _, frame := range frames {
		_, _ = fmt.Fprintf(
			w,
			"%d, %d, %d, %.3f, %d, %d\n",
			frame.ID,
			frame.Timestamp,
			frame.Timestamp-start,
			frame.CurrentFrameRate,
			frame.Hands,
			frame.Pointables,
		)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return "", err
	}
	return filename, f.Close()
}
