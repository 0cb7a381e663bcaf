package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	sparkColorPrimary = lipgloss.Color("#00ff41")
	sparkColorAmber   = lipgloss.Color("#ffb000")
	sparkColorDim     = lipgloss.Color("#404040")
	sparkColorGhost   = lipgloss.Color("#252525")
)

var signalChars = []rune{'⎽', '⎼', '─', '⎻', '⎺'}

// Throughput draws lines per second as an oscilloscope trace. The trace
// turns amber while lines are being redacted.
type Throughput struct {
	Data  []float64
	Width int
	Dirty bool
}

func NewThroughput(width int) *Throughput {
	if width <= 0 {
		width = 60
	}
	return &Throughput{Data: make([]float64, width), Width: width}
}

func (t *Throughput) Update(value float64) {
	t.Data = append(t.Data[1:], value)
}

// SetWidth resizes the trace, keeping the most recent samples.
func (t *Throughput) SetWidth(width int) {
	if width <= 0 || width == t.Width {
		return
	}
	old := t.Data
	if len(old) > width {
		old = old[len(old)-width:]
	}
	t.Width = width
	t.Data = make([]float64, width)
	copy(t.Data[width-len(old):], old)
}

func (t *Throughput) Render() string {
	color := lipgloss.NewStyle().Foreground(sparkColorPrimary)
	if t.Dirty {
		color = lipgloss.NewStyle().Foreground(sparkColorAmber)
	}
	dim := lipgloss.NewStyle().Foreground(sparkColorDim)
	ghost := lipgloss.NewStyle().Foreground(sparkColorGhost)

	var current, maxVal float64
	for _, v := range t.Data {
		maxVal = max(maxVal, v)
	}
	if len(t.Data) > 0 {
		current = t.Data[len(t.Data)-1]
	}
	// Keep a quiet stream from looking like a saturated one.
	maxVal = max(maxVal, 10)

	var trace strings.Builder
	trace.WriteString(" ")
	for i, v := range t.Data {
		if i > 0 && i%10 == 0 {
			trace.WriteString(ghost.Render("│"))
			continue
		}
		if v <= 0 {
			trace.WriteString(dim.Render(string(signalChars[0])))
			continue
		}
		level := min(int(v/maxVal*float64(len(signalChars)-1)), len(signalChars)-1)
		trace.WriteString(color.Render(string(signalChars[level])))
	}

	trace.WriteString(color.Bold(true).Render(" ▶ " + fmtRate(current)))
	return trace.String()
}

func fmtRate(v float64) string {
	switch {
	case v >= 1000000:
		return fmt.Sprintf("%.1fM/s", v/1000000)
	case v >= 1000:
		return fmt.Sprintf("%.1fK/s", v/1000)
	default:
		return fmt.Sprintf("%.0f/s", v)
	}
}
