package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

type TeeOptions struct {
	// SanitizeStdout writes sanitized lines to stdout instead of the
	// original bytes.
	SanitizeStdout bool
	// Write stores the sanitized text in one file. Required when files
	// are given.
	Write func(path, text string) error
}

// Tee copies in to stdout line by line as it arrives and, at end of input,
// writes the sanitized text of everything read to each of files. Every file
// is attempted; their errors are joined.
func Tee(in io.Reader, stdout io.Writer, files []string, s *sanitize.Sanitizer, opts TeeOptions) (sanitize.Stats, error) {
	br := bufio.NewReaderSize(in, 64*1024)
	bw := bufio.NewWriter(stdout)

	var all strings.Builder
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			all.WriteString(line)

			out := line
			if opts.SanitizeStdout {
				// '\n' is never part of an escape run, so per-line results
				// concatenate to the whole-text result.
				out = s.Sanitize(line)
			}
			if _, werr := bw.WriteString(out); werr != nil {
				return sanitize.Stats{}, fmt.Errorf("write stdout: %w", werr)
			}
			if werr := bw.Flush(); werr != nil {
				return sanitize.Stats{}, fmt.Errorf("write stdout: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return sanitize.Stats{}, fmt.Errorf("read input: %w", err)
		}
	}

	clean, stats := s.SanitizeWithStats(all.String())

	if len(files) > 0 && opts.Write == nil {
		return stats, errors.New("tee: no file writer configured")
	}

	var errs []error
	for _, path := range files {
		if err := opts.Write(path, clean); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to write sanitized copy")
			errs = append(errs, err)
			continue
		}
		log.Debug().Str("path", path).Int("bytes", len(clean)).Msg("Sanitized copy written")
	}

	return stats, errors.Join(errs...)
}
