package output

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leap-rate-go/internal/types"
)

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewRawLogWriter(dir, "raw_cbor")
	require.NoError(t, err)

	require.NoError(t, writer.Record([]byte{1, 2, 3}))
	require.NoError(t, writer.Record([]byte("frame")))
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())
	assert.Error(t, writer.Record([]byte{4}))

	f, err := os.Open(writer.Path())
	require.NoError(t, err)
	defer f.Close()

	reader, err := NewRawLogReader(f)
	require.NoError(t, err)

	first, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, first.Payload)
	assert.False(t, first.Time.IsZero())

	second, err := reader.Next()
	require.NoError(t, err)
	assert.Equal(t, "frame", string(second.Payload))

	_, err = reader.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRawLogReaderRejectsOtherFiles(t *testing.T) {
	_, err := NewRawLogReader(bytes.NewReader([]byte("NOTRAW01")))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestRawLogReaderRejectsOversizedRecord(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(RawLogMagic)
	header := make([]byte, rawRecordHeaderSize)
	binary.LittleEndian.PutUint64(header[:8], 1)
	binary.LittleEndian.PutUint32(header[8:], 0xffffffff)
	buf.Write(header)

	reader, err := NewRawLogReader(&buf)
	require.NoError(t, err)
	_, err = reader.Next()
	assert.ErrorIs(t, err, ErrRecordTooLarge)
}

func TestWriteFrames(t *testing.T) {
	dir := t.TempDir()
	frames := []types.Frame{
		{ID: 7, Timestamp: 1000, CurrentFrameRate: 110, Hands: 1, Pointables: 5},
		{ID: 8, Timestamp: 10000, CurrentFrameRate: 111.25},
	}

	path, err := WriteFrames(dir, "20260101_120000", "run1", frames, 1000)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "20260101_120000_frames_run1.csv"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "frame_id, timestamp, elapsed_us, frame_rate, hands, pointables", lines[0])
	assert.Equal(t, "7, 1000, 0, 110.000, 1, 5", lines[1])
	assert.Equal(t, "8, 10000, 9000, 111.250, 0, 0", lines[2])
}

func TestNormalizeJSONValue(t *testing.T) {
	got := NormalizeJSONValue(map[any]any{
		"type":    "frame",
		uint64(3): []any{[]byte{0xde, 0xad}},
	})
	assert.Equal(t, map[string]any{
		"type": "frame",
		"3":    []any{"3q0="},
	}, got)
}
