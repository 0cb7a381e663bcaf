package input

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"", "utf-8", "UTF8", "latin1", "ISO-8859-1", "windows-1252", "cp1252"} {
		_, err := LookupEncoding(name)
		assert.NoError(t, err, name)
	}

	_, err := LookupEncoding("ebcdic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestDecodeString(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		input    string
		expected string
	}{
		{"utf8 passthrough", "utf-8", "caf\u00e9", "caf\u00e9"},
		{"utf8 invalid byte", "utf-8", "a\xffb", "a\ufffdb"},
		{"utf8 each invalid byte", "utf-8", "\xc3\x28\xff", "\ufffd(\ufffd"},
		{"latin1", "latin1", "caf\xe9", "caf\u00e9"},
		{"latin1 c1 control", "latin1", "\x9b2J", "\u009b2J"},
		{"windows-1252 quotes", "windows-1252", "\x93hi\x94", "\u201chi\u201d"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeString(tc.input, tc.encoding)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestNewDecodingReader(t *testing.T) {
	r, err := NewDecodingReader(strings.NewReader("\xe9t\xe9"), "latin1")
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, _ := r.Read(buf)
	assert.Equal(t, "\u00e9t\u00e9", string(buf[:n]))

	_, err = NewDecodingReader(strings.NewReader(""), "klingon")
	assert.Error(t, err)
}

func collect(t *testing.T, lines <-chan *domain.Line, errs <-chan error) ([]*domain.Line, []error) {
	t.Helper()
	var got []*domain.Line
	var gotErrs []error
	for lines != nil || errs != nil {
		select {
		case l, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			got = append(got, l)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			gotErrs = append(gotErrs, err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out reading lines")
		}
	}
	return got, gotErrs
}

func TestStreamReader_Lines(t *testing.T) {
	r := NewStreamReader("stdin", strings.NewReader("one\n\ntwo\r\nthree"), 0)

	startLines, startErrs := r.Start(context.Background())
	lines, errs := collect(t, startLines, startErrs)
	require.Empty(t, errs)
	require.Len(t, lines, 4)

	assert.Equal(t, "one", lines[0].Text)
	assert.Equal(t, "", lines[1].Text)
	assert.Equal(t, "two\r", lines[2].Text)
	assert.Equal(t, "three", lines[3].Text)
	assert.Equal(t, int64(4), lines[3].Number)
	assert.Equal(t, "stdin", lines[3].Source)
}

func TestStreamReader_TrailingNewline(t *testing.T) {
	r := NewStreamReader("stdin", strings.NewReader("a\nb\n"), 0)

	startLines, startErrs := r.Start(context.Background())
	lines, _ := collect(t, startLines, startErrs)
	require.Len(t, lines, 2)
	assert.Equal(t, "b", lines[1].Text)
}

func TestStreamReader_LongLineTruncated(t *testing.T) {
	long := strings.Repeat("x", domain.MaxLineLength+100*1024)
	r := NewStreamReader("stdin", strings.NewReader(long+"\nshort\n"), 0)

	startLines, startErrs := r.Start(context.Background())
	lines, _ := collect(t, startLines, startErrs)
	require.Len(t, lines, 2)
	assert.True(t, lines[0].Truncated)
	assert.Len(t, lines[0].Text, domain.MaxLineLength)
	assert.Equal(t, "short", lines[1].Text)
}

func TestStreamReader_StartTwice(t *testing.T) {
	r := NewStreamReader("stdin", strings.NewReader("a\n"), 0)
	_, _ = r.Start(context.Background())

	lines, errs := r.Start(context.Background())
	_, ok := <-lines
	assert.False(t, ok)
	_, ok = <-errs
	assert.False(t, ok)
	assert.NoError(t, r.Stop())
}

func TestFileTailer_FollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("first\x1b[2J\n"), 0o644))

	tailer := NewFileTailer(path, 10)
	tailer.SetFromBeginning(true)
	tailer.SetPoll(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines, _ := tailer.Start(ctx)
	defer tailer.Stop()

	select {
	case l := <-lines:
		assert.Equal(t, "first\x1b[2J", l.Text)
		assert.Equal(t, int64(1), l.Number)
	case <-time.After(5 * time.Second):
		t.Fatal("no line from tailer")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case l := <-lines:
		assert.Equal(t, "second", l.Text)
		assert.Equal(t, int64(2), l.Number)
	case <-time.After(5 * time.Second):
		t.Fatal("appended line not delivered")
	}

	assert.True(t, tailer.IsRunning())
	require.NoError(t, tailer.Stop())
	assert.False(t, tailer.IsRunning())
}

func nextLine(t *testing.T, lines <-chan *domain.Line) *domain.Line {
	t.Helper()
	select {
	case l := <-lines:
		require.NotNil(t, l)
		return l
	case <-time.After(5 * time.Second):
		t.Fatal("no line from tailer")
		return nil
	}
}

func TestFileTailer_ResumesAtOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("seen\nnew\x07\n"), 0o644))

	tailer := NewFileTailer(path, 10)
	tailer.SetResumeOffset(5)
	tailer.SetPoll(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines, _ := tailer.Start(ctx)
	defer tailer.Stop()

	l := nextLine(t, lines)
	assert.Equal(t, "new\x07", l.Text)
	assert.Equal(t, int64(10), l.Offset)
}

func TestFileTailer_ResumeAfterTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0o644))

	tailer := NewFileTailer(path, 10)
	tailer.SetResumeOffset(1000)
	tailer.SetPoll(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	lines, _ := tailer.Start(ctx)
	defer tailer.Stop()

	l := nextLine(t, lines)
	assert.Equal(t, "a", l.Text)
	assert.Equal(t, int64(2), l.Offset)
	assert.Equal(t, "b", nextLine(t, lines).Text)
}
