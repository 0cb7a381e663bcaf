package input

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// StreamReader splits a reader into lines, for stdin and other pipes. It
// stops at end of input.
type StreamReader struct {
	name       string
	r          io.Reader
	bufferSize int
	mu         sync.Mutex
	running    bool
	stopChan   chan struct{}
}

func NewStreamReader(name string, r io.Reader, bufferSize int) *StreamReader {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &StreamReader{
		name:       name,
		r:          r,
		bufferSize: bufferSize,
		stopChan:   make(chan struct{}),
	}
}

func (s *StreamReader) Start(ctx context.Context) (<-chan *domain.Line, <-chan error) {
	lineChan := make(chan *domain.Line, s.bufferSize)
	errChan := make(chan error, 1)

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		close(lineChan)
		close(errChan)
		return lineChan, errChan
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.mu.Unlock()

	go func() {
		defer close(lineChan)
		defer close(errChan)

		br := bufio.NewReaderSize(s.r, 64*1024)
		var number int64
		for {
			text, err := readLine(br)
			if text != "" || err == nil {
				number++
				line := domain.NewLine(s.name, number, text)
				if line.Truncated {
					log.Warn().Int64("line", number).Msg("Truncated oversized line")
				}
				select {
				case lineChan <- line:
				case <-ctx.Done():
					return
				case <-stopChan:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errChan <- err
				}
				return
			}
		}
	}()

	return lineChan, errChan
}

func (s *StreamReader) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	close(s.stopChan)
	s.running = false
	return nil
}

// readLine returns the next line without its "\n". A "\r" before it is
// content like any other control byte.
// Bytes far past domain.MaxLineLength are dropped while reading;
// domain.NewLine cuts the remainder.
func readLine(br *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		chunk, err := br.ReadSlice('\n')
		if b.Len() <= domain.MaxLineLength {
			b.Write(chunk)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		text := b.String()
		return strings.TrimSuffix(text, "\n"), err
	}
}
