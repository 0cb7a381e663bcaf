// Package tui is the live dashboard for safeterm follow: throughput, the
// most recent redacted lines with what was found in them, and a tally of
// injection classes.
package tui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/internal/ports"
	"github.com/xoelrdgz/safeterm/internal/tui/views"
	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

const (
	maxEventsPerTick = 50
	uiTickInterval   = 100 * time.Millisecond
)

type App struct {
	model      *Model
	throughput *views.Throughput
	feed       *views.LineFeed
	classes    *views.ClassTable
	status     *views.Status
	inspector  *views.Inspector
	auditor    ports.Auditor

	ready    bool
	quitting bool
	width    int
	height   int

	eventBuffer    []*domain.LineEvent
	eventBufferMu  sync.Mutex
	droppedEvents  int64
	maxEventBuffer int

	metricsChan chan domain.MetricsSnapshot
	lastMetrics domain.MetricsSnapshot

	source string
}

// NewApp builds a dashboard. Dirty lines are classified with auditor on the
// UI loop, never on the follower's goroutine.
func NewApp(auditor ports.Auditor) *App {
	return &App{
		model:          NewModel(),
		throughput:     views.NewThroughput(80),
		feed:           views.NewLineFeed(15),
		classes:        views.NewClassTable(100),
		status:         views.NewStatus(100),
		inspector:      views.NewInspector(),
		auditor:        auditor,
		eventBuffer:    make([]*domain.LineEvent, 0, 100),
		maxEventBuffer: 500,
		metricsChan:    make(chan domain.MetricsSnapshot, 10),
		source:         "stdin",
	}
}

// SetSource names the followed input in the header. The name is sanitized
// before display.
func (a *App) SetSource(source string) { a.source = sanitize.String(source) }

type tickMsg time.Time
type metricsMsg domain.MetricsSnapshot

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.tick(), a.listenForMetrics())
}

func (a *App) tick() tea.Cmd {
	return tea.Tick(uiTickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *App) listenForMetrics() tea.Cmd {
	return func() tea.Msg { return metricsMsg(<-a.metricsChan) }
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if a.inspector.Visible {
			switch msg.String() {
			case "esc", "q":
				a.inspector.Close()
			case "up", "k":
				a.inspector.ScrollUp()
			case "down", "j":
				a.inspector.ScrollDown()
			}
			return a, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		case "tab":
			a.model.NextView()
		case "up", "k":
			a.feed.ScrollUp()
		case "down", "j":
			a.feed.ScrollDown()
		case "enter":
			if selected := a.feed.GetSelected(); selected != nil {
				a.inspector.SetEntry(selected)
			}
		}
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.ready = true
		a.model.SetDimensions(msg.Width, msg.Height)
		a.feed.Width = msg.Width - 4
		a.classes.Width = msg.Width - 4
		a.status.Width = msg.Width
		a.throughput.SetWidth(msg.Width - 16)

		contentHeight := max(msg.Height-12, 5)
		a.feed.VisibleCount = contentHeight
		a.classes.VisibleCount = contentHeight

		a.inspector.SetDimensions(msg.Width-4, msg.Height-2)
	case tickMsg:
		a.processBatchedEvents()
		return a, a.tick()
	case metricsMsg:
		prevDirty := a.lastMetrics.DirtyLines
		a.lastMetrics = domain.MetricsSnapshot(msg)
		a.model.UpdateMetrics(a.lastMetrics)
		a.throughput.Dirty = a.lastMetrics.DirtyLines > prevDirty
		a.throughput.Update(a.lastMetrics.LinesPerSecond)
		a.status.Update(a.lastMetrics)
		return a, a.listenForMetrics()
	}
	return a, nil
}

func (a *App) processBatchedEvents() {
	a.eventBufferMu.Lock()
	count := min(len(a.eventBuffer), maxEventsPerTick)
	batch := make([]*domain.LineEvent, count)
	copy(batch, a.eventBuffer[:count])
	a.eventBuffer = a.eventBuffer[count:]
	a.eventBufferMu.Unlock()

	if count == 0 {
		return
	}

	for _, ev := range batch {
		entry := &views.LineEntry{Event: ev}
		if a.auditor != nil {
			entry.Findings = a.auditor.Audit(ev.Raw)
		}
		a.model.AddEntry(entry)
	}
	a.feed.Update(a.model.GetEntries())
	a.classes.Update(a.model.GetClasses())
}

func (a *App) View() string {
	if a.quitting {
		return "\n  Session terminated.\n\n"
	}
	if !a.ready {
		return "\n  Initializing...\n\n"
	}

	if a.inspector.Visible {
		return a.inspector.Render()
	}

	var b strings.Builder

	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(TextDim.Render(strings.Repeat("─", max(a.width, 1))))
	b.WriteString("\n")

	b.WriteString(a.throughput.Render())
	b.WriteString("\n\n")

	viewName := "REDACTED LINES"
	content := a.feed.Render()
	if a.model.ActiveView == 1 {
		viewName = "INJECTION CLASSES"
		content = a.classes.Render()
	}
	b.WriteString(TextMuted.Render("  " + viewName))
	b.WriteString("\n")
	b.WriteString(content)

	b.WriteString("\n\n")
	b.WriteString(a.status.Render())
	b.WriteString("\n")
	b.WriteString(a.renderHelp())

	return b.String()
}

func (a *App) renderHeader() string {
	title := TextPrimary.Bold(true).Render("SAFETERM")

	status := TextPrimary.Bold(true).Render("CLEAN")
	if a.lastMetrics.DirtyLines > 0 {
		status = TextAmber.Bold(true).Render("REDACTING")
	}
	if entries := a.model.GetEntries(); len(entries) > 0 {
		last := entries[len(entries)-1]
		if len(last.Findings) > 0 {
			status += "  " + TextDim.Render("LAST:") + " " + ForSeverity(last.MaxSeverity()).Render(string(last.Findings[0].Class))
		}
	}
	if dropped := a.DroppedEvents(); dropped > 0 {
		status += " " + TextRed.Render(fmt.Sprintf("(%d lines not shown)", dropped))
	}

	return fmt.Sprintf("  %s  %s  %s %s", title, status, TextDim.Render("SRC:"), a.source)
}

func (a *App) renderHelp() string {
	names := []string{"LINES", "CLASSES"}
	return TextDim.Render(fmt.Sprintf("  %s [%s]  %s scroll  %s inspect  %s quit",
		TextKey.Render("TAB"), names[a.model.ActiveView], TextKey.Render("↑↓"), TextKey.Render("ENTER"), TextKey.Render("q")))
}

// OnLine queues dirty lines for display. Clean lines only move the
// counters, which arrive through SendMetrics.
func (a *App) OnLine(event *domain.LineEvent) {
	if !event.Dirty() {
		return
	}

	a.eventBufferMu.Lock()
	defer a.eventBufferMu.Unlock()
	if len(a.eventBuffer) >= a.maxEventBuffer {
		drop := a.maxEventBuffer / 10
		a.droppedEvents += int64(drop)
		a.eventBuffer = a.eventBuffer[drop:]
	}
	a.eventBuffer = append(a.eventBuffer, event)
}

func (a *App) SendMetrics(metrics domain.MetricsSnapshot) {
	select {
	case a.metricsChan <- metrics:
	default:
	}
}

func (a *App) GetModel() *Model { return a.model }

func (a *App) DroppedEvents() int64 {
	a.eventBufferMu.Lock()
	defer a.eventBufferMu.Unlock()
	return a.droppedEvents
}

func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
