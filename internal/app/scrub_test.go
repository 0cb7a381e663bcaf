package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xoelrdgz/safeterm/internal/adapters/audit"
	"github.com/xoelrdgz/safeterm/internal/adapters/input"
	"github.com/xoelrdgz/safeterm/internal/adapters/output"
	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/internal/ports"
)

// collectingReporter keeps every report sent to it.
type collectingReporter struct {
	collectingSubscriber
}

func (c *collectingReporter) Send(ctx context.Context, report *domain.Report) error {
	c.OnReport(report)
	return nil
}

func (c *collectingReporter) Flush() error { return nil }

func (c *collectingReporter) Close() error { return nil }

func newTestScrubber(t *testing.T, outDir string) *Scrubber {
	t.Helper()
	return NewScrubber(newTestSanitizer(t), audit.NewSignatureAuditor(nil), ScrubberConfig{
		OutDir:       outDir,
		Suffix:       ".safe",
		Write:        output.WriteASCIIFile,
		VisibleBytes: audit.VisibleBytes,
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScrubber_OutputPath(t *testing.T) {
	s := NewScrubber(nil, nil, ScrubberConfig{Suffix: ".safe"})
	assert.Equal(t, filepath.Join("logs", "build.log.safe"), s.OutputPath(filepath.Join("logs", "build.log")))

	s = NewScrubber(nil, nil, ScrubberConfig{OutDir: "clean", Suffix: ".txt"})
	assert.Equal(t, filepath.Join("clean", "build.log.txt"), s.OutputPath(filepath.Join("logs", "build.log")))
}

func TestScrubber_Process(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "build.log")
	writeFile(t, in, "\x1b[2Jvulnerable: True\b\b\b\bFalse\n\x1b[32mok\x1b[0m\n")

	s := newTestScrubber(t, "")
	report := s.Process(context.Background(), s.Job(in))

	require.Empty(t, report.Error)
	assert.Equal(t, in, report.Source)
	assert.Equal(t, in+".safe", report.Output)
	assert.Equal(t, 5, report.Stats.Redacted)
	assert.Equal(t, 2, report.Stats.Allowed)
	assert.Less(t, report.VisibleBytes, report.Stats.InputBytes)

	require.Len(t, report.Findings, 2)
	assert.Equal(t, domain.ClassScreenClear, report.Findings[0].Class)
	assert.Equal(t, domain.SeverityCritical, report.MaxSeverity())

	got, err := os.ReadFile(in + ".safe")
	require.NoError(t, err)
	assert.Equal(t, "_[2Jvulnerable: True____False\n\x1b[32mok\x1b[0m\n", string(got))
}

func TestScrubber_Decode(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "latin1.txt")
	writeFile(t, in, "caf\xe9\n")

	s := NewScrubber(newTestSanitizer(t), nil, ScrubberConfig{
		OutDir: filepath.Join(dir, "out"),
		Suffix: ".safe",
		Decode: func(raw string) (string, error) { return input.DecodeString(raw, "latin1") },
		Write:  output.WriteASCIIFile,
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0755))

	report := s.Process(context.Background(), s.Job(in))
	require.Empty(t, report.Error)
	// U+00E9 is one code point, so one placeholder.
	assert.Equal(t, 1, report.Stats.Redacted)

	got, err := os.ReadFile(filepath.Join(dir, "out", "latin1.txt.safe"))
	require.NoError(t, err)
	assert.Equal(t, "caf_\n", string(got))
}

func TestScrubber_Errors(t *testing.T) {
	dir := t.TempDir()
	s := newTestScrubber(t, "")

	t.Run("missing input", func(t *testing.T) {
		report := s.Process(context.Background(), s.Job(filepath.Join(dir, "nope")))
		assert.NotEmpty(t, report.Error)
		assert.Empty(t, report.Output)
	})

	t.Run("output equals input", func(t *testing.T) {
		in := filepath.Join(dir, "same.log")
		writeFile(t, in, "data\x1b[2J")

		report := s.Process(context.Background(), &ScrubJob{Path: in, OutputPath: in})
		assert.Contains(t, report.Error, ErrSameOutput.Error())

		got, err := os.ReadFile(in)
		require.NoError(t, err)
		assert.Equal(t, "data\x1b[2J", string(got), "input must be left untouched")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		report := s.Process(ctx, s.Job(filepath.Join(dir, "x")))
		assert.Contains(t, report.Error, "context canceled")
	})
}

func TestScrubber_WithWorkerPool(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(outDir, 0755))

	s := newTestScrubber(t, outDir)
	memory := &collectingReporter{}
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 3, BufferSize: 4}, s, []ports.Reporter{memory})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	names := []string{"a.log", "b.log", "c.log", "d.log", "e.log", "f.log"}
	for _, name := range names {
		path := filepath.Join(dir, name)
		writeFile(t, path, name+"\x1b]52;c;aGk=\a\n")
		require.True(t, pool.SubmitBlocking(ctx, s.Job(path)))
	}
	pool.SubmitBlocking(ctx, s.Job(filepath.Join(dir, "missing.log")))
	pool.Stop()

	assert.Equal(t, int64(7), pool.Processed())
	assert.Equal(t, int64(1), pool.Failed())
	assert.Len(t, memory.reports, 7)

	for _, name := range names {
		got, err := os.ReadFile(filepath.Join(outDir, name+".safe"))
		require.NoError(t, err)
		assert.Equal(t, name+"_]52;c;aGk=_\n", string(got))
	}

	for _, r := range memory.reports {
		if r.Error != "" {
			continue
		}
		require.NotEmpty(t, r.Findings)
		assert.Equal(t, domain.ClassClipboard, r.Findings[0].Class)
	}
}
