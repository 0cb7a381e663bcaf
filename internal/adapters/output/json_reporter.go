// Package output provides report, metrics and file output adapters.
//
// This file implements report destinations:
//   - JSONReporter: Buffered JSON lines to a file or stdout
//
// Features:
//   - Buffered I/O for throughput (64KB buffer)
//   - Periodic automatic flushing (1 second)
//   - File sync on flush for durability
//
// Thread Safety: All implementations are safe for concurrent Send() calls.
package output

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// JSONReporter writes one JSON document per report.
type JSONReporter struct {
	bufWriter *bufio.Writer // Buffered writer (64KB)
	file      *os.File      // File handle (nil for stdout and custom writers)
	mu        sync.Mutex    // Protects writes
	encoder   *json.Encoder // Reused encoder
	stopFlush chan struct{} // Stop periodic flush
	closeOnce sync.Once
}

// JSONReporterConfig configures JSON report output.
type JSONReporterConfig struct {
	FilePath string    // Output file path; "-" means stdout
	Writer   io.Writer // Used when FilePath is empty
	Pretty   bool      // Pretty-print JSON
}

// NewJSONReporter creates a JSON report output.
//
// Output Priority:
//  1. Stdout if config.FilePath is "-"
//  2. File if config.FilePath is set (created or truncated)
//  3. config.Writer if set
//  4. io.Discard otherwise
//
// File Permissions: 0600 (owner read/write only)
func NewJSONReporter(config JSONReporterConfig) (*JSONReporter, error) {
	var writer io.Writer
	var file *os.File

	switch {
	case config.FilePath == "-":
		writer = os.Stdout
	case config.FilePath != "":
		var err error
		file, err = os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, err
		}
		writer = file
	case config.Writer != nil:
		writer = config.Writer
	default:
		writer = io.Discard
	}

	const bufferSize = 64 * 1024
	bufWriter := bufio.NewWriterSize(writer, bufferSize)

	r := &JSONReporter{
		bufWriter: bufWriter,
		file:      file,
		stopFlush: make(chan struct{}),
	}

	r.encoder = json.NewEncoder(bufWriter)
	if config.Pretty {
		r.encoder.SetIndent("", "  ")
	}

	go r.periodicFlush()

	return r, nil
}

// periodicFlush flushes the buffer every second until Close.
func (r *JSONReporter) periodicFlush() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = r.Flush()
		case <-r.stopFlush:
			return
		}
	}
}

// Send writes report as JSON.
func (r *JSONReporter) Send(ctx context.Context, report *domain.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.encoder.Encode(report)
}

// Flush forces buffered data out and syncs the file, if any.
func (r *JSONReporter) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.bufWriter.Flush(); err != nil {
		return err
	}
	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

// Close stops periodic flushing, flushes the buffer and closes the file.
// Calling Close more than once is safe.
func (r *JSONReporter) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopFlush)

		r.mu.Lock()
		defer r.mu.Unlock()

		if err = r.bufWriter.Flush(); err != nil {
			return
		}
		if r.file != nil {
			if err = r.file.Sync(); err != nil {
				return
			}
			err = r.file.Close()
		}
	})
	return err
}
