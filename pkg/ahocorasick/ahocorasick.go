// Package ahocorasick implements Aho-Corasick multi-pattern matching over
// raw bytes.
//
// Patterns are compared byte for byte and case-sensitively, which is what
// escape sequence signatures need: "\x1b[2J" and "\x1b[2j" mean different
// things to a terminal, and invalid UTF-8 in the text must not be folded
// into replacement runes.
//
// The automaton is compiled into a full transition table, so scanning costs
// one table lookup per input byte, O(n + z) for n text bytes and z matches.
//
// Thread Safety: A Matcher is immutable after New and safe for concurrent use.
package ahocorasick

// Match is one occurrence of a pattern in the text. Start and End are byte
// offsets, End exclusive.
type Match struct {
	Pattern int
	Start   int
	End     int
}

// Matcher is a compiled Aho-Corasick automaton.
type Matcher struct {
	delta    [][256]int32 // delta[state][byte] is the next state
	output   [][]int      // pattern indices ending in each state
	patterns []string
}

// New compiles patterns into a Matcher. Empty patterns are ignored.
func New(patterns []string) *Matcher {
	m := &Matcher{
		delta:    make([][256]int32, 1, 64),
		output:   make([][]int, 1, 64),
		patterns: patterns,
	}

	// goto function: -1 marks a missing edge until failure links fill it in.
	for b := range m.delta[0] {
		m.delta[0][b] = -1
	}
	for i, p := range patterns {
		if p == "" {
			continue
		}
		state := int32(0)
		for j := 0; j < len(p); j++ {
			next := m.delta[state][p[j]]
			if next < 0 {
				next = m.addState()
				m.delta[state][p[j]] = next
			}
			state = next
		}
		m.output[state] = append(m.output[state], i)
	}

	m.build()
	return m
}

func (m *Matcher) addState() int32 {
	var row [256]int32
	for b := range row {
		row[b] = -1
	}
	m.delta = append(m.delta, row)
	m.output = append(m.output, nil)
	return int32(len(m.delta) - 1)
}

// build turns the trie into a DFA: missing edges are replaced by the edge
// the failure state would take, and outputs are merged along failure links.
func (m *Matcher) build() {
	fail := make([]int32, len(m.delta))
	queue := make([]int32, 0, len(m.delta))

	for b := 0; b < 256; b++ {
		next := m.delta[0][b]
		if next < 0 {
			m.delta[0][b] = 0
			continue
		}
		fail[next] = 0
		queue = append(queue, next)
	}

	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]

		m.output[state] = append(m.output[state], m.output[fail[state]]...)

		for b := 0; b < 256; b++ {
			next := m.delta[state][b]
			if next < 0 {
				m.delta[state][b] = m.delta[fail[state]][b]
				continue
			}
			fail[next] = m.delta[fail[state]][b]
			queue = append(queue, next)
		}
	}
}

// FindAll returns every occurrence of every pattern, ordered by end offset.
// Occurrences may overlap.
func (m *Matcher) FindAll(text string) []Match {
	var matches []Match
	state := int32(0)
	for i := 0; i < len(text); i++ {
		state = m.delta[state][text[i]]
		for _, idx := range m.output[state] {
			matches = append(matches, Match{
				Pattern: idx,
				Start:   i + 1 - len(m.patterns[idx]),
				End:     i + 1,
			})
		}
	}
	return matches
}
