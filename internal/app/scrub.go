package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/internal/ports"
)

var ErrSameOutput = errors.New("output path equals input path")

type ScrubberConfig struct {
	// OutDir receives the sanitized copies; empty means next to each input.
	OutDir string
	// Suffix is appended to the input's base name.
	Suffix string
	// Decode turns raw file bytes into text. Nil means the bytes are used
	// as they are.
	Decode func(raw string) (string, error)
	// Write stores the sanitized text. Required.
	Write func(path, text string) error
	// VisibleBytes measures what a terminal would display of the raw
	// text. Optional.
	VisibleBytes func(text string) int
}

// Scrubber sanitizes whole files and reports on each. It implements
// Processor for the worker pool.
type Scrubber struct {
	config    ScrubberConfig
	sanitizer *ReloadableSanitizer
	auditor   ports.Auditor
}

func NewScrubber(sanitizer *ReloadableSanitizer, auditor ports.Auditor, config ScrubberConfig) *Scrubber {
	return &Scrubber{
		config:    config,
		sanitizer: sanitizer,
		auditor:   auditor,
	}
}

// OutputPath returns where the sanitized copy of path is written.
func (s *Scrubber) OutputPath(path string) string {
	dir := s.config.OutDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	return filepath.Join(dir, filepath.Base(path)+s.config.Suffix)
}

// Job builds the job for path.
func (s *Scrubber) Job(path string) *ScrubJob {
	return &ScrubJob{Path: path, OutputPath: s.OutputPath(path)}
}

func (s *Scrubber) Process(ctx context.Context, job *ScrubJob) *domain.Report {
	report := domain.NewReport(job.Path)

	if err := ctx.Err(); err != nil {
		report.SetError(err)
		return report
	}

	if err := s.process(job, report); err != nil {
		report.SetError(err)
		log.Warn().Err(err).Str("path", job.Path).Msg("Scrub failed")
	}
	return report
}

func (s *Scrubber) process(job *ScrubJob, report *domain.Report) error {
	if job.OutputPath == "" {
		job.OutputPath = s.OutputPath(job.Path)
	}
	same, err := samePath(job.Path, job.OutputPath)
	if err != nil {
		return err
	}
	if same {
		return fmt.Errorf("%s: %w", job.Path, ErrSameOutput)
	}

	raw, err := os.ReadFile(job.Path)
	if err != nil {
		return err
	}

	text := string(raw)
	if s.config.Decode != nil {
		if text, err = s.config.Decode(text); err != nil {
			return fmt.Errorf("decode %s: %w", job.Path, err)
		}
	}

	clean, stats := s.sanitizer.Current().SanitizeWithStats(text)
	report.Stats = stats

	if s.auditor != nil {
		report.AddFindings(s.auditor.Audit(text)...)
		report.SortFindings()
	}
	if s.config.VisibleBytes != nil {
		report.VisibleBytes = s.config.VisibleBytes(text)
	}

	if err := s.config.Write(job.OutputPath, clean); err != nil {
		return err
	}
	report.Output = job.OutputPath

	log.Debug().
		Str("path", job.Path).
		Str("output", job.OutputPath).
		Int("redacted", stats.Redacted).
		Int("findings", len(report.Findings)).
		Msg("File scrubbed")
	return nil
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	if absA == absB {
		return true, nil
	}

	infoA, errA := os.Stat(absA)
	infoB, errB := os.Stat(absB)
	if errA != nil || errB != nil {
		return false, nil
	}
	return os.SameFile(infoA, infoB), nil
}
