package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// LineEntry is a dirty line together with what the auditor found in it.
type LineEntry struct {
	Event    *domain.LineEvent
	Findings []domain.Finding
}

// MaxSeverity returns the most severe finding, or "" without findings.
func (e *LineEntry) MaxSeverity() domain.Severity {
	var max domain.Severity
	for _, f := range e.Findings {
		if f.Severity.Rank() > max.Rank() {
			max = f.Severity
		}
	}
	return max
}

// displayText is the sanitized line with its kept SGR sequences removed,
// so that widths can be measured and cut in bytes.
func displayText(e *domain.LineEvent) string {
	return ansi.Strip(e.Sanitized)
}

// LineFeed lists the most recent dirty lines, newest on top.
type LineFeed struct {
	Entries       []*LineEntry
	VisibleCount  int
	ScrollPos     int
	Width         int
	SelectedIndex int
}

func NewLineFeed(visibleCount int) *LineFeed {
	return &LineFeed{
		VisibleCount:  visibleCount,
		Width:         100,
		SelectedIndex: -1,
	}
}

func (l *LineFeed) Update(entries []*LineEntry) { l.Entries = entries }

// ScrollUp moves the selection toward newer lines, which are drawn on top.
func (l *LineFeed) ScrollUp() {
	if l.SelectedIndex < len(l.Entries)-1 {
		l.SelectedIndex++
	}
	l.ensureSelectionVisible()
}

func (l *LineFeed) ScrollDown() {
	if l.SelectedIndex > 0 {
		l.SelectedIndex--
	}
	l.ensureSelectionVisible()
}

func (l *LineFeed) ensureSelectionVisible() {
	if len(l.Entries) <= l.VisibleCount {
		l.ScrollPos = 0
		return
	}

	startIdx, endIdx := l.window()
	if l.SelectedIndex < startIdx {
		l.ScrollPos = len(l.Entries) - l.VisibleCount - l.SelectedIndex
	}
	if l.SelectedIndex >= endIdx {
		l.ScrollPos = len(l.Entries) - l.SelectedIndex - 1
	}

	maxScroll := len(l.Entries) - l.VisibleCount
	if l.ScrollPos < 0 {
		l.ScrollPos = 0
	}
	if l.ScrollPos > maxScroll {
		l.ScrollPos = maxScroll
	}
}

// window returns the index range currently on screen.
func (l *LineFeed) window() (start, end int) {
	end = len(l.Entries)
	if len(l.Entries) <= l.VisibleCount {
		return 0, end
	}
	start = len(l.Entries) - l.VisibleCount - l.ScrollPos
	if start < 0 {
		start = 0
	}
	end = start + l.VisibleCount
	if end > len(l.Entries) {
		end = len(l.Entries)
	}
	return start, end
}

func (l *LineFeed) GetSelected() *LineEntry {
	if l.SelectedIndex >= 0 && l.SelectedIndex < len(l.Entries) {
		return l.Entries[l.SelectedIndex]
	}
	return nil
}

func (l *LineFeed) Render() string {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	text := lipgloss.NewStyle().Foreground(lipgloss.Color("#e5e5e5"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("#00b8ff"))
	selected := lipgloss.NewStyle().Background(lipgloss.Color("#003300")).Foreground(lipgloss.Color("#00ff41"))

	if len(l.Entries) == 0 {
		return dim.Italic(true).Render("  No redacted lines")
	}

	if l.SelectedIndex < 0 {
		l.SelectedIndex = len(l.Entries) - 1
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(
		fmt.Sprintf("  %-8s  %-3s  %8s  %4s  %-16s  %s",
			"TIME", "LVL", "LINE", "RED", "CLASS", "TEXT")))
	lines = append(lines, dim.Render("  "+strings.Repeat("─", max(l.Width-4, 1))))

	startIdx, endIdx := l.window()
	for i := endIdx - 1; i >= startIdx; i-- {
		entry := l.Entries[i]
		ev := entry.Event
		isSelected := i == l.SelectedIndex

		prefix := "  "
		timeStr := dim.Render(ev.Time.Format("15:04:05"))
		if isSelected {
			prefix = "▶ "
			timeStr = selected.Render(ev.Time.Format("15:04:05"))
		}

		lvl, lvlStyle := "---", dim
		switch entry.MaxSeverity() {
		case domain.SeverityCritical:
			lvl, lvlStyle = "CRT", red.Bold(true)
		case domain.SeverityWarning:
			lvl, lvlStyle = "WRN", amber.Bold(true)
		case domain.SeverityInfo:
			lvl, lvlStyle = "INF", cyan
		}

		class := "-"
		if len(entry.Findings) > 0 {
			class = string(entry.Findings[0].Class)
		}
		class = truncate(class, 16)

		msg := displayText(ev)
		maxLen := l.Width - 52
		if maxLen < 10 {
			maxLen = 10
		}
		msg = truncate(msg, maxLen)

		msgStyle := text
		if isSelected {
			msgStyle = selected
		}

		lines = append(lines, fmt.Sprintf("%s%s  %s  %8d  %s  %s  %s",
			prefix,
			timeStr,
			lvlStyle.Render(lvl),
			ev.Number,
			amber.Render(fmt.Sprintf("%4d", ev.Stats.Redacted)),
			green.Render(padRight(class, 16)),
			msgStyle.Render(msg),
		))
	}

	if len(l.Entries) > l.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [%d-%d of %d]",
			l.ScrollPos+1, min(l.ScrollPos+l.VisibleCount, len(l.Entries)), len(l.Entries))))
	}

	return strings.Join(lines, "\n")
}

// truncate cuts s to n bytes with an ellipsis. s must be ASCII.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s[:length]
	}
	return s + strings.Repeat(" ", length-len(s))
}
