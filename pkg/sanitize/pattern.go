package sanitize

// SGR grammar accepted after "ESC [":
//
//	 4-bit: 0*<code>                          code in fourBitRanges
//	 8-bit: 0*[34]8;0*5;0*<0-255>
//	24-bit: 0*[34]8;0*2;0*<0-255>;0*<0-255>;0*<0-255>
//
// Codes are joined by one or more semicolons, any number of bare semicolons
// may lead or trail, and the run ends with 'm'. An empty parameter resets the
// attributes, so it is harmless.
//
// The pattern text built here documents the grammar and is what exclusion
// fragments are written against. Matching itself is done by the automaton in
// matcher.go, which accepts exactly the same language in linear time.

const (
	fourBitCodes = `[0-5]|[7-9]|2[1-5]|2[7-9]|3[0-7]|39|4[0-7]|49|9[0-7]|10[0-7]`
	byteField    = `0*([0-1]?[0-9]?[0-9]|2[0-4][0-9]|25[0-5])`

	// neverMatch is an empty negative lookahead: it fails at every position.
	neverMatch = `(?!)`
)

// fourBitRanges enumerates the same codes as fourBitCodes. The set comes from
// what terminals were observed to render and is kept as is: unknown codes stay
// redacted.
var fourBitRanges = [][2]int{
	{0, 5}, {7, 9}, {21, 25}, {27, 29}, {30, 37}, {39, 39},
	{40, 47}, {49, 49}, {90, 97}, {100, 107},
}

// fourBit is the lookup table derived from fourBitRanges.
var fourBit = func() [108]bool {
	var t [108]bool
	for _, r := range fourBitRanges {
		for code := r[0]; code <= r[1]; code++ {
			t[code] = true
		}
	}
	return t
}()

func fourBitPattern() string {
	return "0*(" + fourBitCodes + ")"
}

func eightBitPattern() string {
	return "0*[3-4]8;0*5;" + byteField
}

func trueColorPattern() string {
	return "0*[3-4]8;0*2;" + byteField + ";" + byteField + ";" + byteField
}

// codePattern is one SGR parameter group of any bit mode, guarded by the
// exclusion lookahead when exclusions are configured.
func codePattern(exclude []string) string {
	code := "(" + fourBitPattern() + "|" + eightBitPattern() + "|" + trueColorPattern() + ")"
	return Exclude(code, exclude)
}

// Pattern returns the pattern text for the SGR body (everything after
// "ESC [") accepted under opts. With SGR disabled it is a pattern that never
// matches.
func Pattern(opts Options) string {
	if !opts.SGR {
		return neverMatch
	}
	code := codePattern(opts.ExcludeSGR)
	return "(;*(" + code + ")?(;+" + code + ")*)?;*m"
}
