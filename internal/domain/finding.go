package domain

import "strconv"

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities so they can be compared; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// InjectionClass names a family of terminal control sequences that untrusted
// text may carry.
type InjectionClass string

const (
	ClassTitleChange    InjectionClass = "OSC_TITLE"
	ClassClipboard      InjectionClass = "OSC_CLIPBOARD"
	ClassHyperlink      InjectionClass = "OSC_HYPERLINK"
	ClassPalette        InjectionClass = "OSC_PALETTE"
	ClassOSC            InjectionClass = "OSC_OTHER"
	ClassDeviceString   InjectionClass = "DCS_STRING"
	ClassPrivateString  InjectionClass = "PRIVATE_STRING"
	ClassScreenClear    InjectionClass = "SCREEN_CLEAR"
	ClassLineErase      InjectionClass = "LINE_ERASE"
	ClassCursorMove     InjectionClass = "CURSOR_MOVE"
	ClassAltScreen      InjectionClass = "ALT_SCREEN"
	ClassDeviceQuery    InjectionClass = "DEVICE_QUERY"
	ClassTerminalReset  InjectionClass = "TERMINAL_RESET"
	ClassC1Control      InjectionClass = "C1_CONTROL"
	ClassOverwrite      InjectionClass = "OVERWRITE"
	ClassConcealedText  InjectionClass = "CONCEALED_TEXT"
	ClassBidiOverride   InjectionClass = "BIDI_OVERRIDE"
	ClassBell           InjectionClass = "BELL"
	ClassUnknownEscapes InjectionClass = "UNKNOWN_ESCAPE"
)

// Finding is one suspicious sequence located in raw input.
type Finding struct {
	Class       InjectionClass `json:"class"`
	Severity    Severity       `json:"severity"`
	Offset      int            `json:"offset"`
	Sequence    string         `json:"sequence"`
	Description string         `json:"description"`
}

// NewFinding records raw at offset. The sequence is stored quoted so the
// finding itself is safe to print or log.
func NewFinding(class InjectionClass, severity Severity, offset int, raw, description string) Finding {
	return Finding{
		Class:       class,
		Severity:    severity,
		Offset:      offset,
		Sequence:    strconv.QuoteToASCII(raw),
		Description: description,
	}
}
