package ahocorasick

import (
	"strings"
	"testing"
)

// patternsIn returns the distinct pattern indices found, in order of first
// occurrence.
func patternsIn(m *Matcher, text string) []int {
	var found []int
	seen := make(map[int]bool)
	for _, mt := range m.FindAll(text) {
		if !seen[mt.Pattern] {
			seen[mt.Pattern] = true
			found = append(found, mt.Pattern)
		}
	}
	return found
}

func TestMatcher_Find(t *testing.T) {
	m := New([]string{"\x1b]52;", "\x1b[2J", "\x1bc"})

	tests := []struct {
		input    string
		expected []int
	}{
		{"copy \x1b]52;c;aGk=\x07", []int{0}},
		{"\x1b[2J", []int{1}},
		{"reset\x1bc", []int{2}},
		{"\x1b[2j", nil},
		{"\x1b]5", nil},
		{"plain text", nil},
		{"", nil},
	}

	for _, tc := range tests {
		got := patternsIn(m, tc.input)
		if len(got) != len(tc.expected) {
			t.Errorf("FindAll(%q) found patterns %v, expected %v", tc.input, got, tc.expected)
			continue
		}
		for i := range got {
			if got[i] != tc.expected[i] {
				t.Errorf("FindAll(%q) found patterns %v, expected %v", tc.input, got, tc.expected)
			}
		}
	}
}

func TestMatcher_CaseSensitive(t *testing.T) {
	m := New([]string{"\x1bP"})

	if len(m.FindAll("\x1bp")) != 0 {
		t.Error("Expected byte-exact comparison")
	}
	if len(m.FindAll("\x1bP")) != 1 {
		t.Error("Expected match on exact bytes")
	}
}

func TestMatcher_InvalidUTF8(t *testing.T) {
	m := New([]string{"\x9b", "\xc2\x9b"})

	got := patternsIn(m, "a\x9bb\xc2\x9b")
	if len(got) != 2 {
		t.Fatalf("Expected both raw and encoded C1 CSI, got %v", got)
	}
}

func TestMatcher_FindAllPositions(t *testing.T) {
	m := New([]string{"\x1b[", "\x1b[2J", "J"})

	matches := m.FindAll("ab\x1b[2Jc")

	want := []Match{
		{Pattern: 0, Start: 2, End: 4},
		{Pattern: 1, Start: 2, End: 6},
		{Pattern: 2, Start: 5, End: 6},
	}
	if len(matches) != len(want) {
		t.Fatalf("Expected %d matches, got %v", len(want), matches)
	}
	seen := make(map[Match]bool)
	for _, mt := range matches {
		seen[mt] = true
	}
	for _, w := range want {
		if !seen[w] {
			t.Errorf("Missing match %+v in %v", w, matches)
		}
	}
}

func TestMatcher_FailureLinks(t *testing.T) {
	m := New([]string{"abcd", "bce"})

	matches := m.FindAll("abce")
	if len(matches) != 1 || matches[0].Pattern != 1 || matches[0].Start != 1 {
		t.Errorf("Expected single match of 'bce' at 1, got %v", matches)
	}
}

func TestMatcher_Empty(t *testing.T) {
	for _, patterns := range [][]string{nil, {}, {""}} {
		m := New(patterns)
		if len(m.FindAll("anything")) != 0 {
			t.Errorf("Matcher %q should find nothing", patterns)
		}
	}
}

func TestMatcher_RepeatedPattern(t *testing.T) {
	m := New([]string{"aa"})

	if n := len(m.FindAll("aaaa")); n != 3 {
		t.Errorf("Expected 3 overlapping matches, got %d", n)
	}
}

func BenchmarkMatcher_FindAll(b *testing.B) {
	m := New([]string{"\x1b]", "\x1b[2J", "\x1bP", "\x1b_", "\x07", "\b", "\r"})
	text := strings.Repeat("ordinary log line with nothing special in it ", 100) + "\x1b]0;x\x07"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.FindAll(text)
	}
}
