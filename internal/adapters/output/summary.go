package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

var (
	colorRed    = lipgloss.Color("#ff3333")
	colorAmber  = lipgloss.Color("#ffb000")
	colorCyan   = lipgloss.Color("#00b8ff")
	colorGreen  = lipgloss.Color("#00ff41")
	colorMuted  = lipgloss.Color("#707070")
	colorBorder = lipgloss.Color("#1a3a1a")
)

type summaryStyles struct {
	box      lipgloss.Style
	critical lipgloss.Style
	header   lipgloss.Style
	muted    lipgloss.Style
	ok       lipgloss.Style
	levels   map[domain.Severity]lipgloss.Style
}

func newSummaryStyles(r *lipgloss.Renderer) summaryStyles {
	return summaryStyles{
		box: r.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		critical: r.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorRed).
			Padding(0, 1),
		header: r.NewStyle().Foreground(colorGreen).Bold(true),
		muted:  r.NewStyle().Foreground(colorMuted),
		ok:     r.NewStyle().Foreground(colorGreen),
		levels: map[domain.Severity]lipgloss.Style{
			domain.SeverityCritical: r.NewStyle().Foreground(colorRed).Bold(true),
			domain.SeverityWarning:  r.NewStyle().Foreground(colorAmber).Bold(true),
			domain.SeverityInfo:     r.NewStyle().Foreground(colorCyan),
		},
	}
}

// SummaryWriter renders audit reports as boxed, colored text for people.
type SummaryWriter struct {
	w      io.Writer
	styles summaryStyles
}

// NewSummaryWriter renders to w. Colors follow w's terminal capabilities;
// color=false forces plain text.
func NewSummaryWriter(w io.Writer, color bool) *SummaryWriter {
	target := w
	if !color {
		// Not a terminal, so the renderer falls back to no styling.
		target = io.Discard
	}
	return &SummaryWriter{w: w, styles: newSummaryStyles(lipgloss.NewRenderer(target))}
}

// Write renders one report.
func (s *SummaryWriter) Write(report *domain.Report) error {
	_, err := io.WriteString(s.w, s.Render(report)+"\n")
	return err
}

// Render formats report. Every piece of untrusted text (source names,
// sequences) is sanitized or quoted before it is styled.
func (s *SummaryWriter) Render(report *domain.Report) string {
	st := s.styles

	var b strings.Builder
	b.WriteString(st.header.Render(sanitize.String(report.Source)))
	b.WriteString("\n")
	b.WriteString(st.muted.Render(fmt.Sprintf(
		"%d bytes in, %d bytes out, %d redacted, %d escapes kept",
		report.Stats.InputBytes, report.Stats.OutputBytes,
		report.Stats.Redacted, report.Stats.Allowed,
	)))
	b.WriteString("\n")

	if report.Error != "" {
		b.WriteString(st.levels[domain.SeverityCritical].Render("error: " + sanitize.String(report.Error)))
		b.WriteString("\n")
	}

	if len(report.Findings) == 0 {
		b.WriteString(st.ok.Render("no injection sequences found"))
	} else {
		counts := report.CountByClass()
		line := strconv.Itoa(len(report.Findings)) + " findings in " + strconv.Itoa(len(counts)) + " classes"
		if report.Repeats > 0 {
			line += ", " + strconv.Itoa(report.Repeats) + " repeats not shown"
		}
		b.WriteString(st.muted.Render(line))
		for _, f := range report.Findings {
			b.WriteString("\n")
			level, ok := st.levels[f.Severity]
			if !ok {
				level = st.muted
			}
			b.WriteString(fmt.Sprintf("%8d  %s  %-15s %s",
				f.Offset,
				level.Render(fmt.Sprintf("%-8s", f.Severity)),
				f.Class,
				st.muted.Render(f.Sequence),
			))
			if f.Description != "" {
				b.WriteString("  " + f.Description)
			}
		}
	}

	box := st.box
	if report.MaxSeverity() == domain.SeverityCritical {
		box = st.critical
	}
	return box.Render(b.String())
}
