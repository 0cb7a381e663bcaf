package tui

import (
	"sort"
	"sync"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/internal/tui/views"
)

// Model is the dashboard state shared between the follower's goroutine and
// the UI loop.
type Model struct {
	Width  int
	Height int

	ActiveView int

	Entries   []*views.LineEntry
	Metrics   domain.MetricsSnapshot
	Sparkline []float64
	classes   map[domain.InjectionClass]*views.ClassEntry

	MaxEntries     int
	SparklineWidth int

	mu         sync.RWMutex
	entryCount int
}

func NewModel() *Model {
	return &Model{
		Width:          120,
		Height:         40,
		Entries:        make([]*views.LineEntry, 0, 100),
		Sparkline:      make([]float64, 60),
		classes:        make(map[domain.InjectionClass]*views.ClassEntry),
		MaxEntries:     200,
		SparklineWidth: 60,
	}
}

// AddEntry records a dirty line and tallies its findings per class.
func (m *Model) AddEntry(entry *views.LineEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entryCount++
	if len(m.Entries) >= m.MaxEntries {
		copy(m.Entries, m.Entries[1:])
		m.Entries = m.Entries[:len(m.Entries)-1]
	}
	m.Entries = append(m.Entries, entry)

	seen := entry.Event.Time.Format("15:04:05")
	for _, f := range entry.Findings {
		c, ok := m.classes[f.Class]
		if !ok {
			c = &views.ClassEntry{Class: f.Class}
			m.classes[f.Class] = c
		}
		c.Count++
		c.LastSeen = seen
		if f.Severity.Rank() > c.Severity.Rank() {
			c.Severity = f.Severity
		}
	}
}

func (m *Model) UpdateMetrics(metrics domain.MetricsSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Metrics = metrics
	m.Sparkline = append(m.Sparkline[1:], metrics.LinesPerSecond)
}

func (m *Model) GetEntries() []*views.LineEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*views.LineEntry, len(m.Entries))
	copy(result, m.Entries)
	return result
}

// GetClasses returns the class tallies, most frequent first.
func (m *Model) GetClasses() []*views.ClassEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*views.ClassEntry, 0, len(m.classes))
	for _, c := range m.classes {
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Class < result[j].Class
	})
	return result
}

func (m *Model) GetMetrics() domain.MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Metrics
}

// TotalEntries counts every dirty line seen, including those rotated out.
func (m *Model) TotalEntries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entryCount
}

func (m *Model) SetDimensions(width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Width = width
	m.Height = height
}

func (m *Model) NextView() {
	m.ActiveView = (m.ActiveView + 1) % 2
}
