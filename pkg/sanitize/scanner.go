package sanitize

import "unicode/utf8"

const (
	esc = 0x1b

	// Placeholder replaces every byte or code point that is not allowed.
	Placeholder = '_'

	placeholder = string(Placeholder)
)

// Classification tells how a fragment of the input was handled.
type Classification uint8

const (
	Literal Classification = iota
	AllowedEscape
	Redacted
)

func (c Classification) String() string {
	switch c {
	case Literal:
		return "literal"
	case AllowedEscape:
		return "allowed_escape"
	case Redacted:
		return "redacted"
	default:
		return "unknown"
	}
}

// Fragment is one step of a scan. Text is the output for that step: the
// literal character, the verbatim escape run, or the placeholder.
type Fragment struct {
	Class Classification
	Text  string
}

// Scanner walks untrusted text once, front to back, and yields the sanitized
// output one fragment at a time. It is not restartable; create a new Scanner
// to scan again.
type Scanner struct {
	text    string
	matcher *Matcher
	pos     int
}

// NewScanner returns a scanner over text. A nil matcher redacts every escape.
func NewScanner(text string, m *Matcher) *Scanner {
	return &Scanner{text: text, matcher: m}
}

// Next returns the next fragment, or false once the text is exhausted.
func (s *Scanner) Next() (Fragment, bool) {
	if s.pos >= len(s.text) {
		return Fragment{}, false
	}

	c := s.text[s.pos]
	if isPlain(c) {
		frag := Fragment{Class: Literal, Text: s.text[s.pos : s.pos+1]}
		s.pos++
		return frag, true
	}

	if c == esc && s.matcher.Enabled() && s.pos+1 < len(s.text) && s.text[s.pos+1] == '[' {
		if n, ok := s.matcher.MatchPrefix(s.text[s.pos+2:]); ok {
			end := s.pos + 2 + n
			frag := Fragment{Class: AllowedEscape, Text: s.text[s.pos:end]}
			s.pos = end
			return frag, true
		}
	}

	// One placeholder per code point; an invalid UTF-8 byte counts as one.
	_, width := utf8.DecodeRuneInString(s.text[s.pos:])
	s.pos += width
	return Fragment{Class: Redacted, Text: placeholder}, true
}

// isPlain reports whether c passes through untouched: printable ASCII,
// newline or horizontal tab.
func isPlain(c byte) bool {
	return (c >= 0x20 && c <= 0x7e) || c == '\n' || c == '\t'
}
