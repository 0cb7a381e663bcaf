package app

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// QuarantineWriter appends one JSON line per job that crashed a worker, so
// the offending input can be inspected later.
type QuarantineWriter struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
	count  atomic.Int64
	path   string
}

type QuarantineEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	WorkerID   int       `json:"worker_id"`
	PanicError string    `json:"panic_error"`
	StackTrace string    `json:"stack_trace,omitempty"`
	Path       string    `json:"path"`
	OutputPath string    `json:"output_path,omitempty"`
}

func NewQuarantineWriter(path string) (*QuarantineWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("Quarantine writer initialized")

	return &QuarantineWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 16*1024),
		path:   path,
	}, nil
}

// WriteToxicJob records job and the panic it caused. Must be called from
// the recovering goroutine for the stack trace to be meaningful.
func (w *QuarantineWriter) WriteToxicJob(workerID int, panicErr interface{}, job *ScrubJob) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	panicStr := "unknown panic"
	if panicErr != nil {
		switch v := panicErr.(type) {
		case error:
			panicStr = v.Error()
		case string:
			panicStr = v
		default:
			panicStr = fmt.Sprintf("%v", v)
		}
	}

	qe := QuarantineEntry{
		Timestamp:  time.Now(),
		WorkerID:   workerID,
		PanicError: panicStr,
		StackTrace: string(debug.Stack()),
		Path:       job.Path,
		OutputPath: job.OutputPath,
	}

	line, err := json.Marshal(qe)
	if err != nil {
		return err
	}

	if _, err := w.writer.Write(line); err != nil {
		return err
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}

	w.count.Add(1)

	log.Warn().
		Int("worker_id", workerID).
		Str("panic", panicStr).
		Str("path", job.Path).
		Int64("quarantine_count", w.count.Load()).
		Msg("Job quarantined")

	return nil
}

func (w *QuarantineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}

	if count := w.count.Load(); count > 0 {
		log.Warn().
			Int64("toxic_count", count).
			Str("path", w.path).
			Msg("Quarantine file contains jobs requiring analysis")
	}

	return w.file.Close()
}

func (w *QuarantineWriter) Count() int64 {
	return w.count.Load()
}
