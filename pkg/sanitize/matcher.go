package sanitize

import (
	"regexp"
	"strings"
)

// Matcher decides whether the text following "ESC [" starts with an allowed
// SGR body. It is immutable after Compile and safe for concurrent use.
//
// The zero value and a nil *Matcher never match.
type Matcher struct {
	enabled   bool
	exclude   *regexp.Regexp // anchored alternation of exclusion fragments
	maxLength int            // longest body accepted, terminator included
	pattern   string
}

// Compile builds the matcher for opts.
//
// Exclusion fragments use RE2 syntax. A fragment that does not compile is
// reported as a *ConfigError. Fragments are not compiled at all when SGR is
// disabled, since nothing can match anyway.
func Compile(opts Options) (*Matcher, error) {
	m := &Matcher{pattern: Pattern(opts)}
	if !opts.SGR {
		return m, nil
	}

	m.enabled = true
	m.maxLength = opts.MaxSequenceLength

	if len(opts.ExcludeSGR) > 0 {
		parts := make([]string, len(opts.ExcludeSGR))
		for i, frag := range opts.ExcludeSGR {
			if _, err := regexp.Compile(frag); err != nil {
				return nil, &ConfigError{Fragment: frag, Err: err}
			}
			parts[i] = "(?:" + frag + ")"
		}
		re, err := regexp.Compile("^(?:" + strings.Join(parts, "|") + ")")
		if err != nil {
			return nil, &ConfigError{Fragment: strings.Join(opts.ExcludeSGR, "|"), Err: err}
		}
		m.exclude = re
	}

	return m, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(opts Options) *Matcher {
	m, err := Compile(opts)
	if err != nil {
		panic(err)
	}
	return m
}

// Enabled reports whether the matcher can match anything at all.
func (m *Matcher) Enabled() bool {
	return m != nil && m.enabled
}

// String returns the pattern text the matcher implements.
func (m *Matcher) String() string {
	if m == nil {
		return neverMatch
	}
	return m.pattern
}

// MatchPrefix reports whether s begins with an allowed SGR body and returns
// its length, terminating 'm' included. Only offset 0 is ever tried.
//
// The body is the longest run of digits and semicolons at the start of s; it
// must be followed by 'm'. Since the grammar cannot contain 'm' anywhere else,
// the candidate end is fixed before the grammar is checked and each byte is
// read a bounded number of times.
func (m *Matcher) MatchPrefix(s string) (int, bool) {
	if !m.Enabled() {
		return 0, false
	}

	limit := len(s)
	if m.maxLength > 0 && m.maxLength < limit {
		limit = m.maxLength
	}

	end := -1
	for i := 0; i < limit; i++ {
		c := s[i]
		if c == 'm' {
			end = i
			break
		}
		if c != ';' && !isDigit(c) {
			return 0, false
		}
	}
	if end < 0 {
		return 0, false
	}

	body := s[:end]

	for i := 0; i < len(body); {
		if body[i] == ';' {
			i++
			continue
		}
		// Exclusions look ahead over the rest of s, not just the run, so a
		// fragment may also name what follows the 'm'.
		if m.exclude != nil && m.exclude.MatchString(s[i:]) {
			return 0, false
		}
		next, ok := matchCode(body, i)
		if !ok {
			return 0, false
		}
		i = next
	}

	return end + 1, true
}

// matchCode matches one parameter group starting at the digit body[i]. A group
// always ends where its last digit run ends, so the caller sees either a
// semicolon or the end of the body next.
func matchCode(body string, i int) (int, bool) {
	v, next, ok := numericField(body, i)
	if !ok {
		return 0, false
	}

	if v == 38 || v == 48 {
		return matchExtended(body, next)
	}
	if v < len(fourBit) && fourBit[v] {
		return next, true
	}
	return 0, false
}

// matchExtended matches the ";5;n" or ";2;r;g;b" tail of an extended color.
// Exactly one semicolon separates its fields.
func matchExtended(body string, i int) (int, bool) {
	mode, i, ok := separatedField(body, i)
	if !ok {
		return 0, false
	}

	var fields int
	switch mode {
	case 5:
		fields = 1
	case 2:
		fields = 3
	default:
		return 0, false
	}

	for k := 0; k < fields; k++ {
		var v int
		v, i, ok = separatedField(body, i)
		if !ok || v > 255 {
			return 0, false
		}
	}
	return i, true
}

func separatedField(body string, i int) (int, int, bool) {
	if i >= len(body) || body[i] != ';' {
		return 0, 0, false
	}
	return numericField(body, i+1)
}

// numericField reads the digit run at body[i:] and returns its value with
// leading zeros ignored. Runs with more than three significant digits are
// outside every field of the grammar and are rejected.
func numericField(body string, i int) (int, int, bool) {
	start := i
	for i < len(body) && body[i] == '0' {
		i++
	}
	significant := i
	for i < len(body) && isDigit(body[i]) {
		i++
	}
	if i == start || i-significant > 3 {
		return 0, 0, false
	}

	v := 0
	for _, c := range []byte(body[significant:i]) {
		v = v*10 + int(c-'0')
	}
	return v, i, true
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
