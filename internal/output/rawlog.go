package output

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const RawLogMagic = "LEAPRAW1"

const rawRecordHeaderSize = 12

// maxRecordSize bounds a single payload read back from a raw log.
const maxRecordSize = 16 << 20

// RawLogWriter appends ingest payloads to a file. Each record is
// unix-nanos (uint64 LE), payload size (uint32 LE), payload.
type RawLogWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
	w    *bufio.Writer
}

func NewRawLogWriter(outputDir string, prefix string) (*RawLogWriter, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.bin", Timestamp(), prefix))
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriterSize(f, 1024*1024)
	if _, err := w.WriteString(RawLogMagic); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &RawLogWriter{
		path: filename,
		f:    f,
		w:    w,
	}, nil
}

func (r *RawLogWriter) Path() string {
	return r.path
}

func (r *RawLogWriter) Record(payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return fmt.Errorf("raw log writer is closed")
	}
	var header [rawRecordHeaderSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := r.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := r.w.Write(payload); err != nil {
		return err
	}
	return r.w.Flush()
}

func (r *RawLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.w.Flush(); err != nil {
		_ = r.f.Close()
		r.w = nil
		return err
	}
	err := r.f.Close()
	r.w = nil
	return err
}

var (
	ErrBadMagic       = errors.New("not a raw log file")
	ErrRecordTooLarge = errors.New("raw log record too large")
)

type RawRecord struct {
	Time    time.Time
	Payload []byte
}

type RawLogReader struct {
	r io.Reader
}

// NewRawLogReader checks the file magic and positions r at the first record.
func NewRawLogReader(r io.Reader) (*RawLogReader, error) {
	magic := make([]byte, len(RawLogMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != RawLogMagic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadMagic, string(magic))
	}
	return &RawLogReader{r: bufio.NewReader(r)}, nil
}

// Next returns io.EOF after the last complete record.
func (r *RawLogReader) Next() (RawRecord, error) {
	var header [rawRecordHeaderSize]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return RawRecord{}, io.EOF
		}
		return RawRecord{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(header[:8]))
	size := binary.LittleEndian.Uint32(header[8:12])
	if size > maxRecordSize {
		return RawRecord{}, fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return RawRecord{}, fmt.Errorf("read payload: %w", err)
	}
	return RawRecord{Time: time.Unix(0, ts), Payload: payload}, nil
}

func Timestamp() string {
	return time.Now().Format("20060102_150405")
}
