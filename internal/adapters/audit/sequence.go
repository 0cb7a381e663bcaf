package audit

import (
	"strconv"
	"strings"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// maxStringLength bounds how far a string sequence (OSC, DCS, APC, PM, SOS)
// is followed looking for its terminator.
const maxStringLength = 4096

// introducer says how a sequence starts and how its extent is found.
type introducer int

const (
	introCSI introducer = iota
	introOSC
	introDCS
	introPrivate
	introReset
	introEscape
	introBell
	introBackspace
	introReturn
	introBidi
)

// stringEnd returns the end of a string sequence whose body starts at i:
// just past BEL, ESC \ or U+009C, or the bounded end when unterminated.
func stringEnd(text string, i int) (end int, terminated bool) {
	limit := len(text)
	if limit-i > maxStringLength {
		limit = i + maxStringLength
	}
	for j := i; j < limit; j++ {
		switch text[j] {
		case 0x07:
			return j + 1, true
		case 0x1b:
			if j+1 < len(text) && text[j+1] == '\\' {
				return j + 2, true
			}
			// A new escape aborts the string.
			return j, false
		case 0xc2:
			if j+1 < len(text) && text[j+1] == 0x9c {
				return j + 2, true
			}
		}
	}
	return limit, false
}

// csi is a parsed control sequence: ESC [ params intermediates final.
type csi struct {
	private       byte
	params        []int
	intermediates string
	final         byte
}

// parseCSI reads a control sequence whose parameters start at i. ok is
// false when the bytes do not form a complete sequence; end then points at
// the first offending byte.
func parseCSI(text string, i int) (seq csi, end int, ok bool) {
	j := i
	if j < len(text) && text[j] >= '<' && text[j] <= '?' {
		seq.private = text[j]
		j++
	}

	start := j
	for j < len(text) && text[j] >= 0x30 && text[j] <= 0x3f {
		j++
	}
	for _, p := range strings.Split(text[start:j], ";") {
		n, err := strconv.Atoi(p)
		if err != nil {
			n = -1
		}
		seq.params = append(seq.params, n)
	}

	istart := j
	for j < len(text) && text[j] >= 0x20 && text[j] <= 0x2f {
		j++
	}
	seq.intermediates = text[istart:j]

	if j < len(text) && text[j] >= 0x40 && text[j] <= 0x7e {
		seq.final = text[j]
		return seq, j + 1, true
	}
	return seq, j, false
}

func (c csi) param(i, def int) int {
	if i < len(c.params) && c.params[i] >= 0 {
		return c.params[i]
	}
	return def
}

// classifyCSI maps a control sequence to a finding class. ok is false for
// sequences that are harmless to display, like plain colors.
func classifyCSI(c csi) (class domain.InjectionClass, sev domain.Severity, desc string, ok bool) {
	switch c.final {
	case 'J':
		if n := c.param(0, 0); n == 2 || n == 3 {
			return domain.ClassScreenClear, domain.SeverityCritical, "erases the whole screen, hiding earlier output", true
		}
		return domain.ClassScreenClear, domain.SeverityWarning, "erases part of the screen", true
	case 'K':
		return domain.ClassLineErase, domain.SeverityWarning, "erases part of the current line", true
	case 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'f', 'd', 's', 'u':
		return domain.ClassCursorMove, domain.SeverityWarning, "moves the cursor so later text can overwrite earlier text", true
	case 'h', 'l':
		if c.private == '?' {
			switch c.param(0, 0) {
			case 47, 1047, 1049:
				return domain.ClassAltScreen, domain.SeverityWarning, "switches screen buffers", true
			}
		}
	case 'n':
		if n := c.param(0, 0); n == 5 || n == 6 {
			return domain.ClassDeviceQuery, domain.SeverityCritical, "asks the terminal to type a reply into the input", true
		}
	case 'c':
		return domain.ClassDeviceQuery, domain.SeverityCritical, "requests device attributes, answered on the input", true
	case 't':
		if n := c.param(0, 0); n == 20 || n == 21 {
			return domain.ClassDeviceQuery, domain.SeverityCritical, "reports the window title back on the input", true
		}
	case 'm':
		if conceals(c) {
			return domain.ClassConcealedText, domain.SeverityWarning, "renders the following text invisible", true
		}
		return "", "", "", false
	}
	return domain.ClassUnknownEscapes, domain.SeverityInfo, "control sequence", true
}

// conceals reports whether an SGR sequence turns on concealment (code 8).
// Color indices inside 38/48/58 extended colors are skipped.
func conceals(c csi) bool {
	for i := 0; i < len(c.params); i++ {
		switch c.params[i] {
		case 8:
			return true
		case 38, 48, 58:
			switch c.param(i+1, -1) {
			case 5:
				i += 2
			case 2:
				i += 4
			}
		}
	}
	return false
}

// classifyOSC maps an operating system command to a finding class by its
// leading number.
func classifyOSC(text string, bodyStart int) (domain.InjectionClass, domain.Severity, string) {
	j := bodyStart
	for j < len(text) && j-bodyStart < 8 && text[j] >= '0' && text[j] <= '9' {
		j++
	}
	switch text[bodyStart:j] {
	case "0", "1", "2":
		return domain.ClassTitleChange, domain.SeverityWarning, "changes the window or icon title"
	case "52":
		return domain.ClassClipboard, domain.SeverityCritical, "reads or writes the clipboard"
	case "8":
		return domain.ClassHyperlink, domain.SeverityWarning, "embeds a hyperlink with a hidden target"
	case "4", "10", "11", "12", "104", "110", "111", "112":
		return domain.ClassPalette, domain.SeverityWarning, "changes or queries terminal colors"
	default:
		return domain.ClassOSC, domain.SeverityWarning, "operating system command"
	}
}
