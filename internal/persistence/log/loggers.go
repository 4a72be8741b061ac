package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"dolworld.ai/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd-compressed files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	// onClosed, if set, receives the path of every finished file.
	onClosed func(path string)

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) SetOnClosed(fn func(path string)) {
	w.mu.Lock()
	w.onClosed = fn
	w.mu.Unlock()
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines into the compressor. Lines become readable
// once the file is rotated or closed.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	var closed string
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		closed = w.f.Name()
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	if closed != "" && err1 == nil && w.onClosed != nil {
		w.onClosed(closed)
	}
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

const (
	UpdatesDir    = "updates"
	UpdatesPrefix = "updates"
	LineageDir    = "lineage"
	LineagePrefix = "lineage"
)

// UpdateLogger writes one JSONL entry per update (compressed).
type UpdateLogger struct{ w *JSONLZstdWriter }

func NewUpdateLogger(runDir string) *UpdateLogger {
	return &UpdateLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, UpdatesDir), UpdatesPrefix)}
}

func (l *UpdateLogger) WriteUpdate(v world.UpdateLogEntry) error { return l.w.Write(v) }
func (l *UpdateLogger) Close() error                             { return l.w.Close() }
func (l *UpdateLogger) Flush() error                             { return l.w.Flush() }
func (l *UpdateLogger) OnClosed(fn func(path string))            { l.w.SetOnClosed(fn) }

// LineageLogger writes organism birth and death entries (compressed).
type LineageLogger struct{ w *JSONLZstdWriter }

func NewLineageLogger(runDir string) *LineageLogger {
	return &LineageLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, LineageDir), LineagePrefix)}
}

func (l *LineageLogger) WriteLineage(v world.LineageEntry) error { return l.w.Write(v) }
func (l *LineageLogger) Close() error                            { return l.w.Close() }
func (l *LineageLogger) Flush() error                            { return l.w.Flush() }
func (l *LineageLogger) OnClosed(fn func(path string))           { l.w.SetOnClosed(fn) }
