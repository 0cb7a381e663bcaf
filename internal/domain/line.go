package domain

import (
	"time"

	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

// MaxLineLength caps a single line read from a followed source. Longer lines
// are cut and flagged rather than buffered without bound.
const MaxLineLength = 1 << 20

// Line is one line of untrusted text, without its terminator.
type Line struct {
	Text      string
	Source    string
	Number    int64
	Truncated bool
	// Offset is the byte offset just past the line in its file, or 0 when
	// the source cannot seek.
	Offset int64
}

// NewLine builds a Line, truncating text to MaxLineLength.
func NewLine(source string, number int64, text string) *Line {
	l := &Line{Source: source, Number: number, Text: text}
	if len(text) > MaxLineLength {
		l.Text = text[:MaxLineLength]
		l.Truncated = true
	}
	return l
}

// LineEvent is a line after sanitizing, as seen by live views. Raw is the
// untrusted original and must never be printed as is.
type LineEvent struct {
	Source    string
	Number    int64
	Raw       string
	Sanitized string
	Stats     sanitize.Stats
	Truncated bool
	Time      time.Time
}

// Dirty reports whether anything in the line was redacted.
func (e *LineEvent) Dirty() bool {
	return e.Stats.Redacted > 0
}
