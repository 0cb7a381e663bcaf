// Package sanitize makes untrusted text safe to print to a terminal.
//
// Output is built from an allow list: printable ASCII, newline, horizontal
// tab and a documented subset of SGR (color and style) sequences. Everything
// else, including every other escape sequence, control character and
// non-ASCII code point, is replaced by an underscore.
//
//	sanitize.String("\x1b[2Jvulnerable: True\b\b\b\bFalse")
//	// "_[2Jvulnerable: True____False"
//
// The package performs no I/O and never reads the environment; callers that
// honor conventions such as NO_COLOR pass the result in through Options.
package sanitize

import (
	"fmt"
	"strings"
)

// Options controls which escape sequences survive sanitization.
//
// The zero Options redacts every escape sequence. DefaultOptions is the
// usual starting point.
type Options struct {
	// SGR allows the SGR subset. When false every escape is redacted.
	SGR bool
	// ExcludeSGR lists RE2 fragments for codes to carve out of the allowed
	// set, for example "0*31" or "0*[34]8;0*(2|5);.*".
	ExcludeSGR []string
	// MaxSequenceLength bounds one SGR body including its 'm'. Longer runs
	// are redacted. <= 0 means no bound.
	MaxSequenceLength int
}

// DefaultOptions allows the SGR subset with no exclusions and no length
// bound.
func DefaultOptions() Options {
	return Options{SGR: true}
}

// ConfigError reports an exclusion fragment that is not a valid pattern.
type ConfigError struct {
	Fragment string
	Err      error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("sanitize: invalid SGR exclusion %q: %v", e.Fragment, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Stats counts what a scan did.
type Stats struct {
	Literal     int `json:"literal"`
	Allowed     int `json:"allowed_escapes"`
	Redacted    int `json:"redacted"`
	InputBytes  int `json:"input_bytes"`
	OutputBytes int `json:"output_bytes"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Literal += other.Literal
	s.Allowed += other.Allowed
	s.Redacted += other.Redacted
	s.InputBytes += other.InputBytes
	s.OutputBytes += other.OutputBytes
}

// Sanitizer applies one compiled matcher to any number of inputs. It holds no
// mutable state and may be shared between goroutines.
type Sanitizer struct {
	matcher *Matcher
}

// New compiles opts into a Sanitizer.
func New(opts Options) (*Sanitizer, error) {
	m, err := Compile(opts)
	if err != nil {
		return nil, err
	}
	return &Sanitizer{matcher: m}, nil
}

// NewWithMatcher wraps an already compiled matcher.
func NewWithMatcher(m *Matcher) *Sanitizer {
	return &Sanitizer{matcher: m}
}

// Matcher returns the compiled matcher in use.
func (s *Sanitizer) Matcher() *Matcher {
	return s.matcher
}

// Sanitize returns text with everything outside the allow list redacted.
func (s *Sanitizer) Sanitize(text string) string {
	out, _ := s.SanitizeWithStats(text)
	return out
}

// SanitizeWithStats is Sanitize plus a count of the fragments produced.
func (s *Sanitizer) SanitizeWithStats(text string) (string, Stats) {
	stats := Stats{InputBytes: len(text)}

	if isClean(text) {
		stats.Literal = len(text)
		stats.OutputBytes = len(text)
		return text, stats
	}

	var b strings.Builder
	b.Grow(len(text))

	sc := NewScanner(text, s.matcher)
	for {
		frag, ok := sc.Next()
		if !ok {
			break
		}
		switch frag.Class {
		case Literal:
			stats.Literal++
		case AllowedEscape:
			stats.Allowed++
		case Redacted:
			stats.Redacted++
		}
		b.WriteString(frag.Text)
	}

	stats.OutputBytes = b.Len()
	return b.String(), stats
}

// Sanitize compiles opts and sanitizes text with it. Callers sanitizing many
// inputs with the same options should build a Sanitizer once instead.
//
// opts is used as given: Options{} keeps no escapes at all. Pass
// DefaultOptions(), or use String, for the default allow list.
func Sanitize(text string, opts Options) (string, error) {
	s, err := New(opts)
	if err != nil {
		return "", err
	}
	return s.Sanitize(text), nil
}

var defaultSanitizer = NewWithMatcher(MustCompile(DefaultOptions()))

// String sanitizes text with DefaultOptions.
func String(text string) string {
	return defaultSanitizer.Sanitize(text)
}

// isClean reports whether text needs no rewriting at all.
func isClean(text string) bool {
	for i := 0; i < len(text); i++ {
		if !isPlain(text[i]) {
			return false
		}
	}
	return true
}
