package app

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/internal/ports"
)

// Follower sanitizes a stream of lines as they arrive and writes them out
// in order. Each line is sanitized with whatever sanitizer is current at
// that moment, so configuration reloads apply from the next line on.
type Follower struct {
	reader    ports.LineReader
	sanitizer *ReloadableSanitizer
	out       *bufio.Writer
	metrics   *domain.ProcessingMetrics
	collector ports.MetricsCollector
	observers []ports.ProcessingObserver
	lineSubs  []ports.LineSubscriber

	offsets      ports.OffsetStore
	offsetSource string
	offset       atomic.Int64 // past the last flushed line
	pending      int64        // past the last handled line
	savedOffset  int64

	lines        <-chan *domain.Line
	lastActivity atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex

	lastLinesProcessed int64
	lastLPSCheck       time.Time
}

func NewFollower(reader ports.LineReader, sanitizer *ReloadableSanitizer, out io.Writer) *Follower {
	return &Follower{
		reader:       reader,
		sanitizer:    sanitizer,
		out:          bufio.NewWriterSize(out, 32*1024),
		metrics:      domain.NewProcessingMetrics(),
		done:         make(chan struct{}),
		lastLPSCheck: time.Now(),
	}
}

// SetCollector attaches an external metrics sink. Call before Start.
func (f *Follower) SetCollector(c ports.MetricsCollector) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collector = c
}

// SetOffsetStore saves how far source has been written, once a second and
// on Stop, so the next run can resume there. Call before Start.
func (f *Follower) SetOffsetStore(store ports.OffsetStore, source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = store
	f.offsetSource = source
}

func (f *Follower) AddObserver(o ports.ProcessingObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

// AddLineSubscriber registers a live view of the sanitized lines. Call
// before Start.
func (f *Follower) AddLineSubscriber(s ports.LineSubscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lineSubs = append(f.lineSubs, s)
}

func (f *Follower) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = true
	f.ctx, f.cancel = context.WithCancel(ctx)
	lineChan, errChan := f.reader.Start(f.ctx)
	f.lines = lineChan
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer close(f.done)
		f.processLines(lineChan, errChan)
	}()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.updateMetrics()
	}()

	log.Info().Msg("Follower started")
	return nil
}

func (f *Follower) processLines(lineChan <-chan *domain.Line, errChan <-chan error) {
	defer func() {
		if err := f.flush(); err != nil {
			log.Error().Err(err).Msg("Failed to flush output")
		}
	}()

	for {
		select {
		case <-f.ctx.Done():
			return
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			log.Error().Err(err).Msg("Error reading input")
		case line, ok := <-lineChan:
			if !ok {
				log.Info().Msg("Line channel closed")
				return
			}
			f.handle(line)
			// Flush once the backlog is drained so interactive use sees
			// lines immediately without a syscall per line under load.
			if len(lineChan) == 0 {
				if err := f.flush(); err != nil {
					log.Error().Err(err).Msg("Failed to flush output")
					return
				}
			}
		}
	}
}

func (f *Follower) flush() error {
	if err := f.out.Flush(); err != nil {
		return err
	}
	f.offset.Store(f.pending)
	return nil
}

func (f *Follower) handle(line *domain.Line) {
	start := time.Now()
	text, stats := f.sanitizer.Current().SanitizeWithStats(line.Text)
	elapsed := time.Since(start)

	f.out.WriteString(text)
	f.out.WriteByte('\n')

	f.lastActivity.Store(time.Now().UnixNano())
	f.metrics.Record(stats)
	if line.Offset > 0 {
		f.pending = line.Offset
	}

	if f.collector != nil {
		f.collector.ObserveLine(stats.Redacted, stats.Allowed, stats.InputBytes, stats.OutputBytes)
		f.collector.ObserveProcessingTime(elapsed.Seconds())
	}

	result := "clean"
	if stats.Redacted > 0 {
		result = "redacted"
		log.Debug().
			Str("source", line.Source).
			Int64("line", line.Number).
			Int("redacted", stats.Redacted).
			Msg("Redacted control sequences")
	}
	for _, o := range f.observers {
		o.IncrementProcessedByResult(result)
	}

	if len(f.lineSubs) > 0 {
		event := &domain.LineEvent{
			Source:    line.Source,
			Number:    line.Number,
			Raw:       line.Text,
			Sanitized: text,
			Stats:     stats,
			Truncated: line.Truncated,
			Time:      time.Now(),
		}
		for _, s := range f.lineSubs {
			s.OnLine(event)
		}
	}
}

func (f *Follower) updateMetrics() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-f.ctx.Done():
			return
		case <-f.done:
			return
		case <-ticker.C:
			now := time.Now()
			elapsed := now.Sub(f.lastLPSCheck).Seconds()
			if elapsed >= 1.0 {
				currentLines := f.metrics.TotalLines()
				lps := float64(currentLines-f.lastLinesProcessed) / elapsed
				f.metrics.UpdateLPS(lps)
				f.lastLinesProcessed = currentLines
				f.lastLPSCheck = now
			}
			f.saveOffset()
		}
	}
}

// saveOffset persists the offset past the last flushed line. A resumed run
// may repeat lines written after the last save but never skips one. Only
// called from updateMetrics and from Stop after updateMetrics has returned.
func (f *Follower) saveOffset() {
	if f.offsets == nil {
		return
	}
	offset := f.offset.Load()
	if offset == 0 || offset == f.savedOffset {
		return
	}
	if err := f.offsets.Save(f.offsetSource, offset); err != nil {
		log.Warn().Err(err).Str("source", f.offsetSource).Msg("Failed to save follow offset")
		return
	}
	f.savedOffset = offset
}

func (f *Follower) Stop() {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.mu.Unlock()

	log.Info().Msg("Stopping follower gracefully...")

	if err := f.reader.Stop(); err != nil {
		log.Error().Err(err).Msg("Error stopping reader")
	}
	if f.cancel != nil {
		f.cancel()
	}

	f.wg.Wait()
	f.saveOffset()

	snap := f.metrics.GetSnapshot()
	log.Info().
		Int64("lines", snap.TotalLines).
		Int64("dirty_lines", snap.DirtyLines).
		Int64("redacted", snap.Redacted).
		Msg("Follower stopped")
}

// Done is closed once the input is exhausted or the follower is stopped.
func (f *Follower) Done() <-chan struct{} {
	return f.done
}

func (f *Follower) Metrics() domain.MetricsSnapshot {
	return f.metrics.GetSnapshot()
}

func (f *Follower) InternalMetrics() *domain.ProcessingMetrics {
	return f.metrics
}

func (f *Follower) IsRunning() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.running
}

func (f *Follower) QueueLength() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.lines)
}

func (f *Follower) QueueCapacity() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return cap(f.lines)
}

// LastActivity returns when the last line was written, or the zero time.
func (f *Follower) LastActivity() time.Time {
	ns := f.lastActivity.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Run starts the follower and blocks until SIGINT/SIGTERM, ctx
// cancellation or end of input, then stops it.
func (f *Follower) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
	case <-f.done:
	}

	f.Stop()
	return nil
}
