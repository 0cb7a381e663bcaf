package sanitize

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/dlclark/regexp2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_MatchPrefix(t *testing.T) {
	m := MustCompile(DefaultOptions())

	tests := []struct {
		body    string
		wantLen int
		wantOK  bool
	}{
		{"m", 1, true},
		{"0m", 2, true},
		{"31m", 3, true},
		{"031m", 4, true},
		{"000031m", 7, true},
		{";;;m", 4, true},
		{";1;;;31;m", 9, true},
		{"1;31;4mtrailing", 7, true},
		{"107m", 4, true},
		{"108m", 0, false},
		{"6m", 0, false},
		{"26m", 0, false},
		{"10m", 0, false},
		{"20m", 0, false},
		{"38m", 0, false},
		{"48m", 0, false},
		{"38;5;255m", 9, true},
		{"48;5;0m", 7, true},
		{"038;005;0000255m", 16, true},
		{"38;5;256m", 0, false},
		{"38;5;1000m", 0, false},
		{"38;5m", 0, false},
		{"38;;5;1m", 0, false},
		{"38;5;;1m", 0, false},
		{"38;2;0;0;0m", 11, true},
		{"38;2;255;255;255;1m", 19, true},
		{"38;2;0;0m", 0, false},
		{"38;2;0;0;256m", 0, false},
		{"38;3;0m", 0, false},
		{"28;5;0m", 7, true},
		{";;;;00038;002;00000;00000;000;;;;;001;;;;;;;038;005;0000255;m", 61, true},
		{"31", 0, false},
		{"31;", 0, false},
		{"2J", 0, false},
		{"?25h", 0, false},
		{"31x", 0, false},
		{"", 0, false},
	}

	for _, tc := range tests {
		t.Run(fmt.Sprintf("%q", tc.body), func(t *testing.T) {
			n, ok := m.MatchPrefix(tc.body)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantLen, n)
		})
	}
}

func TestMatcher_Disabled(t *testing.T) {
	m := MustCompile(noSGR())

	assert.False(t, m.Enabled())
	assert.Equal(t, "(?!)", m.String())

	_, ok := m.MatchPrefix("31m")
	assert.False(t, ok)

	var nilMatcher *Matcher
	_, ok = nilMatcher.MatchPrefix("31m")
	assert.False(t, ok)
	assert.False(t, nilMatcher.Enabled())
}

func TestMatcher_OnlyMatchesAtStart(t *testing.T) {
	m := MustCompile(DefaultOptions())

	_, ok := m.MatchPrefix("x31m")
	assert.False(t, ok)
	_, ok = m.MatchPrefix(" 31m")
	assert.False(t, ok)
}

func TestMatcher_FourBitTableMatchesPattern(t *testing.T) {
	re := regexp2.MustCompile("^(?:"+fourBitPattern()+")$", regexp2.None)

	for code := 0; code < 1000; code++ {
		s := fmt.Sprint(code)
		want, err := re.MatchString(s)
		require.NoError(t, err)

		got := code < len(fourBit) && fourBit[code]
		assert.Equal(t, want, got, "code %d", code)
	}
}

func TestMatcher_MustCompilePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile(withExclusions("["))
	})
}

// referenceMatch runs the pattern text through a backtracking engine with
// lookahead support, anchored at the start of s.
func referenceMatch(t *testing.T, re *regexp2.Regexp, s string) (int, bool) {
	t.Helper()
	match, err := re.FindStringMatch(s)
	require.NoError(t, err)
	if match == nil {
		return 0, false
	}
	return match.Length, true
}

func TestMatcher_AgreesWithPatternText(t *testing.T) {
	optionSets := []Options{
		DefaultOptions(),
		withExclusions("0*31"),
		withExclusions("0*3[0-7]", "0*[34]8;0*5;[0-9]+"),
		withExclusions("0*[3-4]8;0*(2|5);.*"),
		withExclusions("0*38;0*2;0*0;[0-9]+;0*255"),
		withExclusions("0*0*1;"),
		withExclusions("0*31mX"),
		withExclusions(""),
	}

	tokens := []string{
		"0", "00", "1", "3", "4", "5", "8", "9", "31", "38", "48", "100",
		"107", "108", "255", "256", "2", ";", ";", ";;", ";5;", ";2;", "x",
	}

	rng := rand.New(rand.NewSource(42))
	bodies := make([]string, 0, 5000)
	for i := 0; i < 5000; i++ {
		var b strings.Builder
		for n := rng.Intn(9); n > 0; n-- {
			b.WriteString(tokens[rng.Intn(len(tokens))])
		}
		switch rng.Intn(5) {
		case 0:
		case 1:
			b.WriteString("mX")
		default:
			b.WriteString("m")
		}
		bodies = append(bodies, b.String())
	}

	for _, opts := range optionSets {
		m, err := Compile(opts)
		require.NoError(t, err)
		ref := regexp2.MustCompile("^(?:"+Pattern(opts)+")", regexp2.None)

		for _, body := range bodies {
			wantLen, wantOK := referenceMatch(t, ref, body)
			gotLen, gotOK := m.MatchPrefix(body)
			if !assert.Equal(t, wantOK, gotOK, "exclusions %q body %q", opts.ExcludeSGR, body) {
				continue
			}
			assert.Equal(t, wantLen, gotLen, "exclusions %q body %q", opts.ExcludeSGR, body)
		}
	}
}

func TestPattern_Text(t *testing.T) {
	p := Pattern(DefaultOptions())

	assert.True(t, strings.HasPrefix(p, "(;*(("))
	assert.True(t, strings.HasSuffix(p, ")*)?;*m"))
	assert.Contains(t, p, fourBitCodes)
	assert.NotContains(t, p, "(?!")

	excluded := Pattern(withExclusions("0*31", "0*32"))
	assert.Contains(t, excluded, "(?!(?:0*31|0*32))(")
	assert.Equal(t, 2, strings.Count(excluded, "(?!(?:0*31|0*32))"))

	assert.Equal(t, "(?!)", Pattern(noSGR()))
}

func TestExclude(t *testing.T) {
	assert.Equal(t, `(?!(?:0*31))(0*(30|31))`, Exclude(`(0*(30|31))`, []string{`0*31`}))
	assert.Equal(t,
		`(?!(?:0*38;0*5;[0-9]+))(0*38;0*5;0*[0-9])`,
		Exclude(`(0*38;0*5;0*[0-9])`, []string{`0*38;0*5;[0-9]+`}))
	assert.Equal(t, `(?!(?:a|b|c))x`, Exclude(`x`, []string{"a", "b", "c"}))
	assert.Equal(t, `x`, Exclude(`x`, nil))
	assert.Equal(t, `x`, Exclude(`x`, []string{}))
}
