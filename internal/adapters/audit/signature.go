// Package audit finds terminal injection sequences in untrusted text.
//
// Where the sanitizer rewrites text, the auditor only reports: which
// sequences a terminal would have acted on, where they are and how
// dangerous they are. Candidate sequences are located with an Aho-Corasick
// automaton over their introducer bytes, then parsed to find their extent
// and classified.
package audit

import (
	"sort"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/pkg/ahocorasick"
)

// DefaultMaxFindings caps the findings reported for one input.
const DefaultMaxFindings = 10000

// Signature is the byte string that introduces a family of sequences.
type Signature struct {
	Name  string
	Bytes string
	intro introducer
}

// DefaultSignatures covers 7-bit and UTF-8 encoded 8-bit introducers, the
// overwrite controls and the bidirectional overrides.
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "CSI", Bytes: "\x1b[", intro: introCSI},
		{Name: "C1 CSI", Bytes: "\u009b", intro: introCSI},
		{Name: "OSC", Bytes: "\x1b]", intro: introOSC},
		{Name: "C1 OSC", Bytes: "\u009d", intro: introOSC},
		{Name: "DCS", Bytes: "\x1bP", intro: introDCS},
		{Name: "C1 DCS", Bytes: "\u0090", intro: introDCS},
		{Name: "APC", Bytes: "\x1b_", intro: introPrivate},
		{Name: "C1 APC", Bytes: "\u009f", intro: introPrivate},
		{Name: "PM", Bytes: "\x1b^", intro: introPrivate},
		{Name: "C1 PM", Bytes: "\u009e", intro: introPrivate},
		{Name: "SOS", Bytes: "\x1bX", intro: introPrivate},
		{Name: "C1 SOS", Bytes: "\u0098", intro: introPrivate},
		{Name: "RIS", Bytes: "\x1bc", intro: introReset},
		{Name: "ESC", Bytes: "\x1b", intro: introEscape},
		{Name: "BEL", Bytes: "\a", intro: introBell},
		{Name: "BS", Bytes: "\b", intro: introBackspace},
		{Name: "CR", Bytes: "\r", intro: introReturn},
		{Name: "LRE", Bytes: "\u202a", intro: introBidi},
		{Name: "RLE", Bytes: "\u202b", intro: introBidi},
		{Name: "PDF", Bytes: "\u202c", intro: introBidi},
		{Name: "LRO", Bytes: "\u202d", intro: introBidi},
		{Name: "RLO", Bytes: "\u202e", intro: introBidi},
		{Name: "LRI", Bytes: "\u2066", intro: introBidi},
		{Name: "RLI", Bytes: "\u2067", intro: introBidi},
		{Name: "FSI", Bytes: "\u2068", intro: introBidi},
		{Name: "PDI", Bytes: "\u2069", intro: introBidi},
	}
}

// SignatureAuditor implements ports.Auditor.
type SignatureAuditor struct {
	signatures  []Signature
	matcher     *ahocorasick.Matcher
	maxFindings int
}

func NewSignatureAuditor(signatures []Signature) *SignatureAuditor {
	if len(signatures) == 0 {
		signatures = DefaultSignatures()
	}

	patterns := make([]string, len(signatures))
	for i, s := range signatures {
		patterns[i] = s.Bytes
	}

	return &SignatureAuditor{
		signatures:  signatures,
		matcher:     ahocorasick.New(patterns),
		maxFindings: DefaultMaxFindings,
	}
}

// SetMaxFindings changes the per-input cap; n <= 0 removes it.
func (a *SignatureAuditor) SetMaxFindings(n int) {
	a.maxFindings = n
}

func (a *SignatureAuditor) Name() string {
	return "signature"
}

func (a *SignatureAuditor) SignatureCount() int {
	return len(a.signatures)
}

// Audit walks text once, code point by code point. At each position where
// a signature starts, the longest one wins and the walk resumes after the
// sequence it introduces, so terminators inside a sequence are not reported
// again.
func (a *SignatureAuditor) Audit(text string) []domain.Finding {
	hits := a.hits(text)

	var findings []domain.Finding
	full := func() bool {
		return a.maxFindings > 0 && len(findings) >= a.maxFindings
	}

	i := 0
	for i < len(text) && !full() {
		if sig, ok := hits[i]; ok {
			end, f, report := a.inspect(text, i, a.signatures[sig])
			if report {
				findings = append(findings, f)
			}
			i = end
			continue
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == utf8.RuneError && size == 1 && text[i] >= 0x80 && text[i] <= 0x9f:
			findings = append(findings, rawC1(text, i))
		case r >= 0x80 && r <= 0x9f:
			findings = append(findings, domain.NewFinding(domain.ClassC1Control, domain.SeverityWarning,
				i, text[i:i+size], "8-bit control character"))
		}
		i += size
	}

	return findings
}

// hits maps each start offset to the longest signature beginning there.
func (a *SignatureAuditor) hits(text string) map[int]int {
	matches := a.matcher.FindAll(text)
	if len(matches) == 0 {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Start != matches[j].Start {
			return matches[i].Start < matches[j].Start
		}
		return matches[i].End > matches[j].End
	})

	hits := make(map[int]int, len(matches))
	for _, m := range matches {
		if _, seen := hits[m.Start]; !seen {
			hits[m.Start] = m.Pattern
		}
	}
	return hits
}

// inspect finds the extent of the sequence introduced by sig at start and
// classifies it. report is false for sequences that are safe to display.
func (a *SignatureAuditor) inspect(text string, start int, sig Signature) (end int, f domain.Finding, report bool) {
	body := start + len(sig.Bytes)

	switch sig.intro {
	case introCSI:
		seq, end, ok := parseCSI(text, body)
		if !ok {
			return end, domain.NewFinding(domain.ClassUnknownEscapes, domain.SeverityInfo,
				start, text[start:end], "incomplete control sequence"), true
		}
		class, sev, desc, ok := classifyCSI(seq)
		if !ok {
			return end, domain.Finding{}, false
		}
		return end, domain.NewFinding(class, sev, start, text[start:end], desc), true

	case introOSC:
		end, _ := stringEnd(text, body)
		class, sev, desc := classifyOSC(text, body)
		return end, domain.NewFinding(class, sev, start, text[start:end], desc), true

	case introDCS:
		end, _ := stringEnd(text, body)
		return end, domain.NewFinding(domain.ClassDeviceString, domain.SeverityCritical,
			start, text[start:end], "device control string, may make the terminal reply on the input"), true

	case introPrivate:
		end, _ := stringEnd(text, body)
		return end, domain.NewFinding(domain.ClassPrivateString, domain.SeverityWarning,
			start, text[start:end], "application or privacy string, hidden from display"), true

	case introReset:
		return body, domain.NewFinding(domain.ClassTerminalReset, domain.SeverityCritical,
			start, sig.Bytes, "resets the terminal and clears the screen"), true

	case introEscape:
		end := body
		if end < len(text) && text[end] >= 0x20 && text[end] <= 0x7e {
			end++
		}
		return end, domain.NewFinding(domain.ClassUnknownEscapes, domain.SeverityInfo,
			start, text[start:end], "escape sequence"), true

	case introBell:
		return body, domain.NewFinding(domain.ClassBell, domain.SeverityInfo,
			start, sig.Bytes, "rings the terminal bell"), true

	case introBackspace:
		end := body
		for end < len(text) && text[end] == '\b' {
			end++
		}
		return end, domain.NewFinding(domain.ClassOverwrite, domain.SeverityWarning,
			start, text[start:end], "backspace lets later text overwrite earlier text"), true

	case introReturn:
		if body < len(text) && text[body] == '\n' {
			return body + 1, domain.Finding{}, false
		}
		return body, domain.NewFinding(domain.ClassOverwrite, domain.SeverityWarning,
			start, sig.Bytes, "carriage return without newline rewrites the line"), true

	case introBidi:
		return body, domain.NewFinding(domain.ClassBidiOverride, domain.SeverityWarning,
			start, sig.Bytes, "reorders how the following text is displayed"), true
	}

	return body, domain.Finding{}, false
}

// rawC1 reports a lone byte in 0x80-0x9f, which terminals in 8-bit mode
// read as a C1 control.
func rawC1(text string, i int) domain.Finding {
	switch text[i] {
	case 0x9b, 0x9d, 0x90:
		return domain.NewFinding(domain.ClassC1Control, domain.SeverityCritical,
			i, text[i:i+1], "raw 8-bit sequence introducer")
	default:
		return domain.NewFinding(domain.ClassC1Control, domain.SeverityWarning,
			i, text[i:i+1], "raw 8-bit control byte")
	}
}

// VisibleBytes returns how many bytes of text remain once a terminal's
// escape parser has consumed every control sequence.
func VisibleBytes(text string) int {
	return len(ansi.Strip(text))
}
