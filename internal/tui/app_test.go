package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

type stubAuditor struct{}

func (stubAuditor) Audit(text string) []domain.Finding {
	if strings.Contains(text, "\x1b[2J") {
		return []domain.Finding{domain.NewFinding(domain.ClassScreenClear, domain.SeverityCritical,
			strings.Index(text, "\x1b[2J"), "\x1b[2J", "clear")}
	}
	return nil
}

func (stubAuditor) Name() string { return "stub" }

func lineEvent(n int64, raw string) *domain.LineEvent {
	text, stats := sanitize.NewWithMatcher(sanitize.MustCompile(sanitize.DefaultOptions())).SanitizeWithStats(raw)
	return &domain.LineEvent{Source: "test", Number: n, Raw: raw, Sanitized: text, Stats: stats, Time: time.Now()}
}

func sized(t *testing.T) *App {
	t.Helper()
	a := NewApp(stubAuditor{})
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return a
}

func TestApp_OnLineKeepsOnlyDirtyLines(t *testing.T) {
	a := sized(t)

	a.OnLine(lineEvent(1, "plain"))
	a.OnLine(lineEvent(2, "\x1b[2Jgone"))
	a.OnLine(lineEvent(3, "\x1b[32mgreen\x1b[0m"))

	a.Update(tickMsg(time.Now()))

	entries := a.GetModel().GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(2), entries[0].Event.Number)
	require.Len(t, entries[0].Findings, 1)
	assert.Equal(t, domain.ClassScreenClear, entries[0].Findings[0].Class)
}

func TestApp_BufferDropsOldest(t *testing.T) {
	a := NewApp(nil)
	a.maxEventBuffer = 10

	for i := int64(0); i < 15; i++ {
		a.OnLine(lineEvent(i, "\a"))
	}
	assert.Positive(t, a.DroppedEvents())

	a.Update(tickMsg(time.Now()))
	entries := a.GetModel().GetEntries()
	require.NotEmpty(t, entries)
	assert.Equal(t, int64(14), entries[len(entries)-1].Event.Number)
}

func TestApp_TickBatchesEvents(t *testing.T) {
	a := sized(t)
	for i := int64(0); i < maxEventsPerTick+10; i++ {
		a.OnLine(lineEvent(i, "\a"))
	}

	a.Update(tickMsg(time.Now()))
	assert.Len(t, a.GetModel().GetEntries(), maxEventsPerTick)
	a.Update(tickMsg(time.Now()))
	assert.Len(t, a.GetModel().GetEntries(), maxEventsPerTick+10)
}

func TestApp_ViewNeverShowsRawEscapes(t *testing.T) {
	a := sized(t)
	a.SetSource("evil\x1b]0;title\x07.log")
	a.OnLine(lineEvent(1, "\x1b[2J\x1b]52;c;aGk=\x07payload"))
	a.Update(tickMsg(time.Now()))
	a.Update(metricsMsg(domain.MetricsSnapshot{TotalLines: 1, DirtyLines: 1, Redacted: 2}))

	view := a.View()
	assert.Contains(t, view, "SAFETERM")
	assert.Contains(t, view, "REDACTING")
	assert.Contains(t, view, "payload")
	assert.NotContains(t, view, "\x1b]")
	assert.NotContains(t, view, "\x1b[2J")

	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Contains(t, a.View(), string(domain.ClassScreenClear))
}

func TestApp_Inspector(t *testing.T) {
	a := sized(t)
	a.OnLine(lineEvent(7, "\x1b[2Jhidden"))
	a.Update(tickMsg(time.Now()))
	_ = a.View()

	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, a.inspector.Visible)
	view := a.View()
	assert.Contains(t, view, "hidden")
	assert.NotContains(t, view, "\x1b[2J")

	a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, a.inspector.Visible)
}

func TestApp_Quit(t *testing.T) {
	a := sized(t)
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, a.View(), "terminated")
}

func TestApp_SendMetricsDoesNotBlock(t *testing.T) {
	a := NewApp(nil)
	for i := 0; i < 100; i++ {
		a.SendMetrics(domain.MetricsSnapshot{TotalLines: int64(i)})
	}
}
