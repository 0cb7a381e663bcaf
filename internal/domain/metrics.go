package domain

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

type MetricsSnapshot struct {
	TotalLines     int64
	DirtyLines     int64
	Literal        int64
	Allowed        int64
	Redacted       int64
	InputBytes     int64
	OutputBytes    int64
	Reloads        int64
	LinesPerSecond float64
	Uptime         time.Duration
	StartTime      time.Time
}

// ProcessingMetrics aggregates sanitizer statistics across lines, files and
// workers. Counters are lock free; the rate is refreshed by a ticker.
type ProcessingMetrics struct {
	totalLines  atomic.Int64
	dirtyLines  atomic.Int64
	literal     atomic.Int64
	allowed     atomic.Int64
	redacted    atomic.Int64
	inputBytes  atomic.Int64
	outputBytes atomic.Int64
	reloads     atomic.Int64

	LinesPerSecond float64
	StartTime      time.Time

	mu sync.RWMutex
}

func NewProcessingMetrics() *ProcessingMetrics {
	return &ProcessingMetrics{
		StartTime: time.Now(),
	}
}

// Record accounts one processed line. A line is dirty when anything in it
// was redacted.
func (m *ProcessingMetrics) Record(stats sanitize.Stats) {
	m.totalLines.Add(1)
	if stats.Redacted > 0 {
		m.dirtyLines.Add(1)
	}
	m.literal.Add(int64(stats.Literal))
	m.allowed.Add(int64(stats.Allowed))
	m.redacted.Add(int64(stats.Redacted))
	m.inputBytes.Add(int64(stats.InputBytes))
	m.outputBytes.Add(int64(stats.OutputBytes))
}

func (m *ProcessingMetrics) IncrementReloads() {
	m.reloads.Add(1)
}

func (m *ProcessingMetrics) TotalLines() int64 {
	return m.totalLines.Load()
}

func (m *ProcessingMetrics) UpdateLPS(lps float64) {
	m.mu.Lock()
	m.LinesPerSecond = lps
	m.mu.Unlock()
}

func (m *ProcessingMetrics) GetSnapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MetricsSnapshot{
		TotalLines:     m.totalLines.Load(),
		DirtyLines:     m.dirtyLines.Load(),
		Literal:        m.literal.Load(),
		Allowed:        m.allowed.Load(),
		Redacted:       m.redacted.Load(),
		InputBytes:     m.inputBytes.Load(),
		OutputBytes:    m.outputBytes.Load(),
		Reloads:        m.reloads.Load(),
		LinesPerSecond: m.LinesPerSecond,
		Uptime:         time.Since(m.StartTime),
		StartTime:      m.StartTime,
	}
}
