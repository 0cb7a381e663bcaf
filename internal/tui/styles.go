package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

var (
	ColorPrimary    = lipgloss.Color("#00ff41")
	ColorPrimaryDim = lipgloss.Color("#00aa2a")
	ColorAmber      = lipgloss.Color("#ffb000")
	ColorRed        = lipgloss.Color("#ff3333")
	ColorCyan       = lipgloss.Color("#00b8ff")
	ColorText       = lipgloss.Color("#e5e5e5")
	ColorMuted      = lipgloss.Color("#707070")
	ColorDim        = lipgloss.Color("#404040")
)

var (
	TextPrimary = lipgloss.NewStyle().Foreground(ColorPrimary)
	TextAmber   = lipgloss.NewStyle().Foreground(ColorAmber)
	TextRed     = lipgloss.NewStyle().Foreground(ColorRed)
	TextMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	TextDim     = lipgloss.NewStyle().Foreground(ColorDim)
	TextKey     = lipgloss.NewStyle().Foreground(ColorPrimaryDim)
)

var (
	LevelCritical = lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
	LevelWarning  = lipgloss.NewStyle().Foreground(ColorAmber).Bold(true)
	LevelInfo     = lipgloss.NewStyle().Foreground(ColorCyan)
)

func ForSeverity(sev domain.Severity) lipgloss.Style {
	switch sev {
	case domain.SeverityCritical:
		return LevelCritical
	case domain.SeverityWarning:
		return LevelWarning
	default:
		return LevelInfo
	}
}
