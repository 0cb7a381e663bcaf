package views

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

type Status struct {
	Width      int
	Metrics    domain.MetricsSnapshot
	lastUpdate time.Time
}

func NewStatus(width int) *Status {
	return &Status{Width: width}
}

func (s *Status) Update(metrics domain.MetricsSnapshot) {
	s.Metrics = metrics
	s.lastUpdate = time.Now()
}

func (s *Status) Render() string {
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff41"))
	greenDim := lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa2a"))
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))
	border := lipgloss.NewStyle().Foreground(lipgloss.Color("#2a2a2a"))

	m := s.Metrics

	dirty := green
	if m.DirtyLines > 0 {
		dirty = amber.Bold(true)
	}
	if m.TotalLines > 0 && m.DirtyLines*10 > m.TotalLines {
		dirty = red.Bold(true)
	}

	kept := "0%"
	if m.InputBytes > 0 {
		kept = fmt.Sprintf("%.0f%%", float64(m.OutputBytes)/float64(m.InputBytes)*100)
	}

	items := []string{
		s.heartbeat(green, greenDim, amber, red),
		muted.Render("RATE:") + " " + green.Render(fmtLarge(int64(m.LinesPerSecond))+"/s"),
		muted.Render("LINES:") + " " + green.Render(fmtLarge(m.TotalLines)),
		muted.Render("DIRTY:") + " " + dirty.Render(fmtLarge(m.DirtyLines)),
		muted.Render("REDACTED:") + " " + dirty.Render(fmtLarge(m.Redacted)),
		muted.Render("SGR:") + " " + green.Render(fmtLarge(m.Allowed)),
		muted.Render("OUT:") + " " + green.Render(kept),
		muted.Render("RELOADS:") + " " + green.Render(fmtLarge(m.Reloads)),
		muted.Render("UP:") + " " + green.Render(fmtUptime(m.Uptime)),
	}

	line := ""
	sep := border.Render(" │ ")
	for i, item := range items {
		if i > 0 {
			line += sep
		}
		line += item
	}

	return lipgloss.NewStyle().
		Width(s.Width).
		Padding(0, 1).
		Render(line)
}

// heartbeat fades as metric updates stop arriving.
func (s *Status) heartbeat(active, dim, warn, crit lipgloss.Style) string {
	var icon string
	var style lipgloss.Style

	switch elapsed := time.Since(s.lastUpdate); {
	case elapsed < 1500*time.Millisecond:
		icon, style = "●", active.Bold(true)
	case elapsed < 3*time.Second:
		icon, style = "●", dim
	case elapsed < 10*time.Second:
		icon, style = "○", warn
	default:
		icon, style = "○", crit
	}

	return lipgloss.NewStyle().Foreground(lipgloss.Color("#707070")).Render("SYS:") + " " + style.Render(icon)
}

func fmtLarge(n int64) string {
	if n >= 1000000 {
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
	if n >= 1000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

func fmtUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
