package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// ClassEntry tallies the findings of one injection class.
type ClassEntry struct {
	Class    domain.InjectionClass
	Count    int
	Severity domain.Severity
	LastSeen string
}

// ClassTable ranks injection classes by how often they were seen.
type ClassTable struct {
	Classes      []*ClassEntry
	Width        int
	VisibleCount int
}

func NewClassTable(width int) *ClassTable {
	return &ClassTable{Width: width, VisibleCount: 20}
}

func (v *ClassTable) Update(classes []*ClassEntry) { v.Classes = classes }

func (v *ClassTable) Render() string {
	amber := lipgloss.NewStyle().Foreground(lipgloss.Color("#ffb000"))
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("#ff3333"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("#00b8ff"))
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("#404040"))
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("#707070"))

	if len(v.Classes) == 0 {
		return dim.Italic(true).Render("  No injection attempts")
	}

	var lines []string
	lines = append(lines, muted.Bold(true).Render(fmt.Sprintf(" %-3s %-20s %-8s %-14s %s",
		"#", "CLASS", "LEVEL", "HITS", "LAST")))
	lines = append(lines, dim.Render(strings.Repeat("─", max(v.Width, 1))))

	maxCount := v.Classes[0].Count
	visible := v.Classes
	if len(visible) > v.VisibleCount {
		visible = visible[:v.VisibleCount]
	}

	for i, c := range visible {
		style := cyan
		switch c.Severity {
		case domain.SeverityCritical:
			style = red.Bold(true)
		case domain.SeverityWarning:
			style = amber
		}

		barWidth := 6
		fill := 0
		if maxCount > 0 {
			fill = c.Count * barWidth / maxCount
		}
		bar := strings.Repeat("█", fill) + strings.Repeat("░", barWidth-fill)

		lines = append(lines, fmt.Sprintf(" %s %s %s %s %s",
			muted.Render(fmt.Sprintf("%2d.", i+1)),
			style.Render(padRight(string(c.Class), 20)),
			style.Render(padRight(string(c.Severity), 8)),
			style.Render(fmt.Sprintf("%s %7s", bar, fmtLarge(int64(c.Count)))),
			muted.Render(c.LastSeen),
		))
	}

	if len(v.Classes) > v.VisibleCount {
		lines = append(lines, dim.Render(fmt.Sprintf("  [showing %d of %d classes]", v.VisibleCount, len(v.Classes))))
	}

	return strings.Join(lines, "\n")
}
