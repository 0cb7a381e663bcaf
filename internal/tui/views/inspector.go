package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

var (
	inspColorPrimary = lipgloss.Color("#00ff41")
	inspColorAmber   = lipgloss.Color("#ffb000")
	inspColorRed     = lipgloss.Color("#ff3333")
	inspColorText    = lipgloss.Color("#e5e5e5")
	inspColorDim     = lipgloss.Color("#404040")
	inspColorBg      = lipgloss.Color("#0a1f0a")
)

// Inspector shows one dirty line in full: where it came from, what was
// found in it and the sanitized text.
type Inspector struct {
	Entry   *LineEntry
	Width   int
	Height  int
	ScrollY int
	Visible bool
}

func NewInspector() *Inspector {
	return &Inspector{Width: 80, Height: 24}
}

func (p *Inspector) SetEntry(entry *LineEntry) {
	p.Entry = entry
	p.ScrollY = 0
	p.Visible = entry != nil
}

func (p *Inspector) SetDimensions(width, height int) {
	p.Width = width
	p.Height = height
}

func (p *Inspector) ScrollUp() {
	if p.ScrollY > 0 {
		p.ScrollY--
	}
}

func (p *Inspector) ScrollDown() {
	p.ScrollY++
}

func (p *Inspector) Close() {
	p.Entry = nil
	p.Visible = false
}

func (p *Inspector) Render() string {
	if p.Entry == nil {
		return ""
	}

	ev := p.Entry.Event
	contentWidth := max(p.Width-4, 10)

	header := lipgloss.NewStyle().Foreground(inspColorPrimary).Bold(true)
	label := lipgloss.NewStyle().Foreground(inspColorAmber).Width(12)
	value := lipgloss.NewStyle().Foreground(inspColorText)
	dimText := lipgloss.NewStyle().Foreground(inspColorDim)
	codeBlock := lipgloss.NewStyle().Foreground(inspColorPrimary).Background(inspColorBg)
	critical := lipgloss.NewStyle().Foreground(inspColorRed).Bold(true)
	rule := dimText.Render(strings.Repeat("─", contentWidth))

	var lines []string
	lines = append(lines, header.Render("╔═══ LINE INSPECTOR ═══╗"))
	lines = append(lines, rule)

	lines = append(lines, header.Render("▶ LINE"))
	lines = append(lines, fmt.Sprintf("%s %s", label.Render("Time:"), value.Render(ev.Time.Format("2006-01-02 15:04:05.000"))))
	lines = append(lines, fmt.Sprintf("%s %s", label.Render("Source:"), value.Render(truncate(sanitize.String(ev.Source), contentWidth-13))))
	lines = append(lines, fmt.Sprintf("%s %d", label.Render("Line:"), ev.Number))
	lines = append(lines, fmt.Sprintf("%s %d redacted, %d kept escapes, %d -> %d bytes",
		label.Render("Stats:"), ev.Stats.Redacted, ev.Stats.Allowed, ev.Stats.InputBytes, ev.Stats.OutputBytes))
	if ev.Truncated {
		lines = append(lines, critical.Render("⚠ line was cut at the maximum line length"))
	}

	lines = append(lines, "", rule)
	lines = append(lines, header.Render(fmt.Sprintf("▶ FINDINGS (%d)", len(p.Entry.Findings))))
	if len(p.Entry.Findings) == 0 {
		lines = append(lines, dimText.Render("  none classified; bytes outside the allowed alphabet"))
	}
	for _, f := range p.Entry.Findings {
		sev := value
		if f.Severity == domain.SeverityCritical {
			sev = critical
		}
		lines = append(lines, fmt.Sprintf("  @%-6d %s %s",
			f.Offset, sev.Render(padRight(string(f.Severity), 8)), value.Render(string(f.Class))))
		// Sequence is already quoted down to ASCII.
		lines = append(lines, "          "+codeBlock.Render(truncate(f.Sequence, contentWidth-10)))
		lines = append(lines, "          "+dimText.Render(f.Description))
	}

	lines = append(lines, "", rule)
	lines = append(lines, header.Render("▶ SANITIZED"))
	text := displayText(ev)
	for i := 0; i < len(text); i += contentWidth {
		end := min(i+contentWidth, len(text))
		lines = append(lines, codeBlock.Render(text[i:end]))
	}

	lines = append(lines, "", rule)
	lines = append(lines, dimText.Render("[ESC] Close   [↑/↓] Scroll"))

	if p.ScrollY > 0 && p.ScrollY < len(lines) {
		lines = lines[p.ScrollY:]
	}
	if p.Height > 2 && len(lines) > p.Height-2 {
		lines = lines[:p.Height-2]
	}

	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(inspColorPrimary).
		Padding(0, 1).
		Width(p.Width).
		Render(strings.Join(lines, "\n"))
}
