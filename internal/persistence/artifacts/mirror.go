package artifacts

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Uploader stores one local file under an object key.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

type Stats struct {
	QueueDepth     int    `json:"queue_depth"`
	QueueCapacity  int    `json:"queue_capacity"`
	EnqueuedTotal  uint64 `json:"enqueued_total"`
	DroppedTotal   uint64 `json:"dropped_total"`
	UploadedTotal  uint64 `json:"uploaded_total"`
	FailedTotal    uint64 `json:"failed_total"`
	LastUploadUnix int64  `json:"last_upload_unix"`
}

// Mirror copies finished run files (rotated logs, the manifest and the
// index) to object storage in the background. Keys are the file paths
// relative to the data directory, under an optional prefix.
type Mirror struct {
	up      Uploader
	dataDir string
	prefix  string
	logger  *log.Logger

	jobs    chan string
	wait    time.Duration
	backoff time.Duration
	wg      sync.WaitGroup

	enqueued atomic.Uint64
	dropped  atomic.Uint64
	uploaded atomic.Uint64
	failed   atomic.Uint64
	lastOK   atomic.Int64
}

type MirrorOptions struct {
	Prefix      string
	Workers     int
	QueueSize   int
	EnqueueWait time.Duration
	Backoff     time.Duration
	Logger      *log.Logger
}

func NewMirror(up Uploader, dataDir string, opts MirrorOptions) *Mirror {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.EnqueueWait <= 0 {
		opts.EnqueueWait = 25 * time.Millisecond
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 200 * time.Millisecond
	}
	m := &Mirror{
		up:      up,
		dataDir: dataDir,
		prefix:  strings.Trim(strings.ReplaceAll(opts.Prefix, "\\", "/"), "/"),
		logger:  opts.Logger,
		jobs:    make(chan string, opts.QueueSize),
		wait:    opts.EnqueueWait,
		backoff: opts.Backoff,
	}
	for i := 0; i < opts.Workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for p := range m.jobs {
				m.uploadOne(p)
			}
		}()
	}
	return m
}

// Enqueue schedules localPath for upload. It waits at most EnqueueWait for
// queue space so callers on the world loop never stall; on timeout the file
// is dropped and counted.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.enqueued.Add(1)
	select {
	case m.jobs <- localPath:
		return
	default:
	}
	t := time.NewTimer(m.wait)
	defer t.Stop()
	select {
	case m.jobs <- localPath:
	case <-t.C:
		n := m.dropped.Add(1)
		m.printf("artifact mirror drop %s (queue full, dropped_total=%d)", localPath, n)
	}
}

// Close waits for queued uploads to finish.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(m.jobs),
		QueueCapacity:  cap(m.jobs),
		EnqueuedTotal:  m.enqueued.Load(),
		DroppedTotal:   m.dropped.Load(),
		UploadedTotal:  m.uploaded.Load(),
		FailedTotal:    m.failed.Load(),
		LastUploadUnix: m.lastOK.Load(),
	}
}

func (m *Mirror) uploadOne(localPath string) {
	key, err := m.ObjectKey(localPath)
	if err != nil {
		m.failed.Add(1)
		m.printf("artifact mirror skip %s: %v", localPath, err)
		return
	}
	const attempts = 4
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			m.uploaded.Add(1)
			m.lastOK.Store(time.Now().Unix())
			m.printf("artifact mirror uploaded %s", key)
			return
		}
		if i < attempts {
			time.Sleep(time.Duration(i*i) * m.backoff)
		}
	}
	m.failed.Add(1)
	m.printf("artifact mirror upload %s failed: %v", key, err)
}

// ObjectKey maps a local file under the data directory to its object key.
func (m *Mirror) ObjectKey(localPath string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", err
	}
	base, err := filepath.Abs(m.dataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, base)
	}
	if m.prefix != "" {
		rel = path.Join(m.prefix, rel)
	}
	return rel, nil
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
