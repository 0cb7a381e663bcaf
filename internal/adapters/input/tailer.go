package input

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/nxadm/tail"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// FileTailer follows a file the way tail -F does: it keeps reading as the
// file grows and reopens it after rotation.
type FileTailer struct {
	filepath      string
	tail          *tail.Tail
	bufferSize    int
	fromBeginning bool
	resumeOffset  int64
	poll          bool
	mu            sync.Mutex
	running       bool
	stopChan      chan struct{}
}

func NewFileTailer(filepath string, bufferSize int) *FileTailer {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	return &FileTailer{
		filepath:   filepath,
		bufferSize: bufferSize,
		stopChan:   make(chan struct{}),
	}
}

// SetFromBeginning starts reading at offset 0 instead of the current end.
func (t *FileTailer) SetFromBeginning(fromBeginning bool) {
	t.fromBeginning = fromBeginning
}

// SetResumeOffset starts reading at offset, the end of the last line
// written by an earlier run. It takes precedence over SetFromBeginning.
func (t *FileTailer) SetResumeOffset(offset int64) {
	t.resumeOffset = offset
}

// SetPoll switches from inotify to stat polling, for filesystems that do not
// deliver change events.
func (t *FileTailer) SetPoll(poll bool) {
	t.poll = poll
}

func (t *FileTailer) Start(ctx context.Context) (<-chan *domain.Line, <-chan error) {
	lineChan := make(chan *domain.Line, t.bufferSize)
	errChan := make(chan error, 10)

	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		close(lineChan)
		close(errChan)
		return lineChan, errChan
	}
	t.running = true
	t.stopChan = make(chan struct{})
	stopChan := t.stopChan
	t.mu.Unlock()

	go func() {
		defer close(lineChan)
		defer close(errChan)

		config := tail.Config{
			Follow:    true,
			ReOpen:    true,
			MustExist: false,
			Poll:      t.poll,
			Location:  t.location(),
			Logger:    tail.DiscardingLogger,
		}

		tf, err := tail.TailFile(t.filepath, config)
		if err != nil {
			log.Error().Err(err).Str("file", t.filepath).Msg("Failed to tail file")
			errChan <- err
			return
		}
		t.mu.Lock()
		t.tail = tf
		t.mu.Unlock()

		log.Info().Str("file", t.filepath).Bool("poll", t.poll).Msg("Started following file")

		var number int64
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Context cancelled, stopping tailer")
				return
			case <-stopChan:
				log.Info().Msg("Stop signal received, stopping tailer")
				return
			case tl, ok := <-tf.Lines:
				if !ok {
					log.Info().Msg("Tail channel closed")
					return
				}
				if tl.Err != nil {
					log.Warn().Err(tl.Err).Msg("Error reading line")
					errChan <- tl.Err
					continue
				}

				number++
				line := domain.NewLine(t.filepath, number, tl.Text)
				line.Offset = tl.SeekInfo.Offset
				if line.Truncated {
					log.Warn().
						Int("original_size", len(tl.Text)).
						Int("truncated_to", domain.MaxLineLength).
						Int64("line", number).
						Msg("Truncated oversized line")
				}

				select {
				case lineChan <- line:
				case <-ctx.Done():
					return
				case <-stopChan:
					return
				}
			}
		}
	}()

	return lineChan, errChan
}

func (t *FileTailer) location() *tail.SeekInfo {
	if t.resumeOffset > 0 {
		info, err := os.Stat(t.filepath)
		switch {
		case err == nil && info.Size() >= t.resumeOffset:
			log.Info().Str("file", t.filepath).Int64("offset", t.resumeOffset).Msg("Resuming after last written line")
			return &tail.SeekInfo{Offset: t.resumeOffset, Whence: io.SeekStart}
		case err == nil:
			// Shorter than where we stopped: truncated or replaced since.
			log.Warn().
				Str("file", t.filepath).
				Int64("offset", t.resumeOffset).
				Int64("size", info.Size()).
				Msg("File shrank since last run, reading from the beginning")
			return &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
		}
	}

	if t.fromBeginning {
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}
	return &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
}

func (t *FileTailer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopChan)
	t.running = false

	if t.tail != nil {
		err := t.tail.Stop()
		t.tail.Cleanup()
		return err
	}
	return nil
}

func (t *FileTailer) IsRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}
