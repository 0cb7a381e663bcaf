package sanitize

import "strings"

// Exclude prefixes base with a negative lookahead built from negations, so the
// resulting pattern matches base only where none of the negations match at the
// same position.
//
// Example:
//
//	Exclude(`(0*(30|31))`, []string{`0*31`}) == `(?!(?:0*31))(0*(30|31))`
//
// An empty negation list returns base unchanged.
func Exclude(base string, negations []string) string {
	if len(negations) == 0 {
		return base
	}
	return "(?!(?:" + strings.Join(negations, "|") + "))" + base
}
