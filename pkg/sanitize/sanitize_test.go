package sanitize

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSGR() Options {
	opts := DefaultOptions()
	opts.SGR = false
	return opts
}

func withExclusions(frags ...string) Options {
	opts := DefaultOptions()
	opts.ExcludeSGR = frags
	return opts
}

func TestSanitize_PrintableASCIIPassesThrough(t *testing.T) {
	for c := 0x20; c <= 0x7e; c++ {
		in := string(rune(c))
		assert.Equal(t, in, String(in), "code point %#x", c)
	}
}

func TestSanitize_Whitespace(t *testing.T) {
	assert.Equal(t, "\n", String("\n"))
	assert.Equal(t, "\t", String("\t"))
	assert.Equal(t, "_", String("\r"))
	assert.Equal(t, "_", String("\v"))
	assert.Equal(t, "_", String("\f"))
}

func TestSanitize_ControlCharactersRedacted(t *testing.T) {
	for c := 0; c < 0x20; c++ {
		if c == '\n' || c == '\t' {
			continue
		}
		assert.Equal(t, "_", String(string(rune(c))), "control %#x", c)
	}
	assert.Equal(t, "_", String("\x7f"))
}

func TestSanitize_Examples(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		opts     Options
		expected string
	}{
		{
			name:     "bell",
			input:    "\x07",
			opts:     DefaultOptions(),
			expected: "_",
		},
		{
			name:     "4-bit SGR kept",
			input:    "\x1b[31m",
			opts:     DefaultOptions(),
			expected: "\x1b[31m",
		},
		{
			name:     "4-bit SGR without SGR support",
			input:    "\x1b[31m",
			opts:     noSGR(),
			expected: "_[31m",
		},
		{
			name:     "screen clear and backspace overwrite",
			input:    "\x1b[2Jvulnerable: True\b\b\b\bFalse",
			opts:     DefaultOptions(),
			expected: "_[2Jvulnerable: True____False",
		},
		{
			name:     "every bit mode redacted without SGR support",
			input:    "\x1b[38;5;0m\x1b[31m\x1b[38;2;0;0;0m",
			opts:     noSGR(),
			expected: "_[38;5;0m_[31m_[38;2;0;0;0m",
		},
		{
			name:     "every bit mode kept",
			input:    "\x1b[38;5;0m\x1b[31m\x1b[38;2;0;0;0m",
			opts:     DefaultOptions(),
			expected: "\x1b[38;5;0m\x1b[31m\x1b[38;2;0;0;0m",
		},
		{
			name:     "extended colors excluded, 4-bit kept",
			input:    "\x1b[38;5;0m\x1b[31m\x1b[38;2;0;0;0m",
			opts:     withExclusions("0*[3-4]8;0*(2|5);.*"),
			expected: "_[38;5;0m\x1b[31m_[38;2;0;0;0m",
		},
		{
			name:     "excluded code",
			input:    "\x1b[31m",
			opts:     withExclusions("0*31"),
			expected: "_[31m",
		},
		{
			name:     "code next to excluded one",
			input:    "\x1b[32m",
			opts:     withExclusions("0*31"),
			expected: "\x1b[32m",
		},
		{
			name:     "exclusion reaching past the terminator",
			input:    "\x1b[31mX\x1b[31mY",
			opts:     withExclusions("0*31mX"),
			expected: "_[31mX\x1b[31mY",
		},
		{
			name:     "excluded code inside a longer run",
			input:    "\x1b[1;31;4m",
			opts:     withExclusions("0*31"),
			expected: "_[1;31;4m",
		},
		{
			name:     "mixed allowed and disallowed",
			input:    "\b\x1b[31m\x1b[m\x1b[2K",
			opts:     DefaultOptions(),
			expected: "_\x1b[31m\x1b[m_[2K",
		},
		{
			name:     "OSC title set",
			input:    "\x1b]0;pwned\x07done",
			opts:     DefaultOptions(),
			expected: "_]0;pwned_done",
		},
		{
			name:     "OSC 52 clipboard write",
			input:    "\x1b]52;c;ZWNobyBoaQ==\x1b\\",
			opts:     DefaultOptions(),
			expected: "_]52;c;ZWNobyBoaQ==_\\",
		},
		{
			name:     "lone ESC at end",
			input:    "abc\x1b",
			opts:     DefaultOptions(),
			expected: "abc_",
		},
		{
			name:     "ESC [ at end",
			input:    "abc\x1b[",
			opts:     DefaultOptions(),
			expected: "abc_[",
		},
		{
			name:     "unterminated SGR",
			input:    "\x1b[31",
			opts:     DefaultOptions(),
			expected: "_[31",
		},
		{
			name:     "non-ASCII code points",
			input:    "café \u202e",
			opts:     DefaultOptions(),
			expected: "caf_ _",
		},
		{
			name:     "C1 CSI",
			input:    "\u009b31m",
			opts:     DefaultOptions(),
			expected: "_31m",
		},
		{
			name:     "invalid UTF-8 redacted byte by byte",
			input:    "a\xff\xfeb",
			opts:     DefaultOptions(),
			expected: "a__b",
		},
		{
			name:     "empty",
			input:    "",
			opts:     DefaultOptions(),
			expected: "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sanitize(tc.input, tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSanitize_InvalidExclusion(t *testing.T) {
	_, err := Sanitize("\x1b[31m", withExclusions("0*31", "(unclosed"))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "(unclosed", cfgErr.Fragment)
	assert.Contains(t, err.Error(), "invalid SGR exclusion")
}

func TestSanitize_InvalidExclusionIgnoredWithoutSGR(t *testing.T) {
	opts := noSGR()
	opts.ExcludeSGR = []string{"(unclosed"}

	got, err := Sanitize("\x1b[31m", opts)
	require.NoError(t, err)
	assert.Equal(t, "_[31m", got)
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"\x1b[31mred\x1b[0m plain",
		"\x1b[2J\x1b[H\x1b]0;title\x07",
		"\x1b[38;2;255;0;0mtrue\x1b[m\b\r\x00",
		"é\u202e\xff\x1b[;;;1;;m",
		strings.Repeat("\x1b[1;31;4m\x1b", 20),
	}
	options := []Options{DefaultOptions(), noSGR(), withExclusions("0*31")}

	for _, opts := range options {
		s, err := New(opts)
		require.NoError(t, err)
		for _, in := range inputs {
			once := s.Sanitize(in)
			assert.Equal(t, once, s.Sanitize(once), "input %q", in)
		}
	}
}

func TestSanitize_Deterministic(t *testing.T) {
	in := "\x1b[1;38;5;196mhi\x1b[2K\x1b[0m\x07"
	first := String(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, String(in))
	}
}

func TestSanitizer_Stats(t *testing.T) {
	s, err := New(DefaultOptions())
	require.NoError(t, err)

	out, stats := s.SanitizeWithStats("a\x1b[31mb\x07\x1b[2J")

	assert.Equal(t, "a\x1b[31mb__[2J", out)
	assert.Equal(t, Stats{
		Literal:     5,
		Allowed:     1,
		Redacted:    2,
		InputBytes:  12,
		OutputBytes: len(out),
	}, stats)
}

func TestSanitizer_StatsCleanInput(t *testing.T) {
	s, err := New(DefaultOptions())
	require.NoError(t, err)

	out, stats := s.SanitizeWithStats("hello\n")
	assert.Equal(t, "hello\n", out)
	assert.Equal(t, 6, stats.Literal)
	assert.Zero(t, stats.Redacted)
}

func TestStats_Add(t *testing.T) {
	total := Stats{Literal: 1, Redacted: 2}
	total.Add(Stats{Literal: 3, Allowed: 1, InputBytes: 5, OutputBytes: 4})

	assert.Equal(t, Stats{Literal: 4, Allowed: 1, Redacted: 2, InputBytes: 5, OutputBytes: 4}, total)
}

func TestSanitizer_ConcurrentUse(t *testing.T) {
	s, err := New(withExclusions("0*31"))
	require.NoError(t, err)

	in := "\x1b[32mok\x1b[31mno\x1b[2J"
	want := "\x1b[32mok_[31mno_[2J"

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if got := s.Sanitize(in); got != want {
					t.Errorf("Sanitize() = %q, want %q", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSanitize_LongSequenceKeptByDefault(t *testing.T) {
	in := "\x1b[" + strings.Repeat("1;", 2100) + "m"
	assert.Equal(t, in, String(in))

	body := strings.Repeat(";", 5000) + "m"
	assert.Equal(t, "\x1b["+body, String("\x1b["+body))
}

func TestSanitize_LongSequenceBound(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxSequenceLength = 64

	body := strings.Repeat(";", 64) + "m"
	got, err := Sanitize("\x1b["+body, opts)
	require.NoError(t, err)
	assert.Equal(t, "_["+body, got)

	short := "\x1b[" + strings.Repeat(";", 62) + "m"
	got, err = Sanitize(short, opts)
	require.NoError(t, err)
	assert.Equal(t, short, got)
}

func TestSanitize_ZeroOptionsRedactEscapes(t *testing.T) {
	got, err := Sanitize("\x1b[31mred", Options{})
	require.NoError(t, err)
	assert.Equal(t, "_[31mred", got)
}

func BenchmarkSanitize_Clean(b *testing.B) {
	input := "Normal text without any control characters that needs no sanitization"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		String(input)
	}
}

func BenchmarkSanitize_WithEscapes(b *testing.B) {
	input := "\x1b[31mMalicious \x1b[2J text\x1b[0m with \x1b[38;2;1;2;3mcolor\x07"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		String(input)
	}
}

func BenchmarkSanitize_Adversarial(b *testing.B) {
	input := strings.Repeat("\x1b["+strings.Repeat("1;", 100)+"X", 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		String(input)
	}
}
