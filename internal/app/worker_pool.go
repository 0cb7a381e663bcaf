// Package app wires the sanitizer into the safeterm commands: the line
// follower, the tee, and the concurrent file scrubber with its worker pool.
package app

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/internal/ports"
)

// ScrubJob names one input file and where its sanitized copy goes.
type ScrubJob struct {
	Path       string
	OutputPath string
}

// Processor turns one job into a report. Failures are recorded on the
// report, never returned.
type Processor interface {
	Process(ctx context.Context, job *ScrubJob) *domain.Report
}

// WorkerPool runs scrub jobs on a fixed set of goroutines and dispatches
// the resulting reports to reporters, observers and subscribers.
//
// Features:
//   - Fixed worker count for predictable resource usage
//   - Backpressure with configurable timeouts
//   - Quarantine for jobs causing panics
//   - Automatic worker restart on panic
//
// Thread Safety: All public methods are safe for concurrent access.
type WorkerPool struct {
	workerCount int
	inputChan   chan *ScrubJob
	outputChan  chan *domain.Report
	processor   Processor
	reporters   []ports.Reporter
	observers   []ports.ProcessingObserver
	subscribers []ports.ReportSubscriber
	bufferSize  int

	submitTimeout time.Duration

	quarantine *QuarantineWriter

	processed atomic.Int64
	failed    atomic.Int64
	panics    atomic.Int64

	workers    sync.WaitGroup
	dispatcher sync.WaitGroup
	stopOnce   sync.Once
	stopChan   chan struct{}
	running    bool
	mu         sync.RWMutex
}

type WorkerPoolConfig struct {
	WorkerCount    int           // Number of worker goroutines (default: 4)
	BufferSize     int           // Job and report channel buffer (default: 256)
	SubmitTimeout  time.Duration // Backpressure timeout for Submit (default: 100ms)
	QuarantinePath string        // Path for the quarantine file (empty disables)
}

func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:   4,
		BufferSize:    256,
		SubmitTimeout: 100 * time.Millisecond,
	}
}

func NewWorkerPool(config WorkerPoolConfig, processor Processor, reporters []ports.Reporter) *WorkerPool {
	if config.WorkerCount <= 0 {
		config.WorkerCount = 4
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.SubmitTimeout <= 0 {
		config.SubmitTimeout = 100 * time.Millisecond
	}

	wp := &WorkerPool{
		workerCount:   config.WorkerCount,
		inputChan:     make(chan *ScrubJob, config.BufferSize),
		outputChan:    make(chan *domain.Report, config.BufferSize),
		processor:     processor,
		reporters:     reporters,
		bufferSize:    config.BufferSize,
		submitTimeout: config.SubmitTimeout,
		stopChan:      make(chan struct{}),
	}

	if config.QuarantinePath != "" {
		quarantine, err := NewQuarantineWriter(config.QuarantinePath)
		if err != nil {
			log.Error().Err(err).Str("path", config.QuarantinePath).Msg("Failed to create quarantine writer")
		} else {
			wp.quarantine = quarantine
		}
	}

	return wp
}

// Start launches the workers and the report dispatcher. Idempotent.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.mu.Lock()
	if wp.running {
		wp.mu.Unlock()
		return
	}
	wp.running = true
	wp.mu.Unlock()

	for i := 0; i < wp.workerCount; i++ {
		wp.workers.Add(1)
		go wp.worker(ctx, i)
	}

	wp.dispatcher.Add(1)
	go wp.dispatch(ctx)

	log.Info().
		Int("workers", wp.workerCount).
		Bool("quarantine", wp.quarantine != nil).
		Msg("Worker pool started")
}

// worker drains the job channel. A job that panics still yields a report,
// with the panic as its error, and the worker is replaced.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.workers.Done()

	var currentJob *ScrubJob

	defer func() {
		if r := recover(); r != nil {
			wp.panics.Add(1)
			log.Error().
				Interface("panic", r).
				Int("worker_id", id).
				Msg("Worker panic recovered")

			if currentJob != nil {
				if wp.quarantine != nil {
					if err := wp.quarantine.WriteToxicJob(id, r, currentJob); err != nil {
						log.Error().Err(err).Int("worker_id", id).Msg("Failed to quarantine job")
					}
				}

				report := domain.NewReport(currentJob.Path)
				report.SetError(fmt.Errorf("panic while scrubbing: %v", r))
				wp.emit(report)
			}

			wp.workers.Add(1)
			go wp.worker(ctx, id)
		}
	}()

	log.Debug().Int("worker_id", id).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			log.Debug().Int("worker_id", id).Msg("Worker stopped (context cancelled)")
			return
		case job, ok := <-wp.inputChan:
			if !ok {
				log.Debug().Int("worker_id", id).Msg("Worker stopped (input channel closed)")
				return
			}

			currentJob = job
			wp.emit(wp.processor.Process(ctx, job))
			currentJob = nil
		}
	}
}

func (wp *WorkerPool) emit(report *domain.Report) {
	wp.processed.Add(1)
	if report.Error != "" {
		wp.failed.Add(1)
	}
	wp.outputChan <- report
}

// dispatch fans reports out until the output channel is closed, so every
// report emitted before Stop is delivered.
func (wp *WorkerPool) dispatch(ctx context.Context) {
	defer wp.dispatcher.Done()

	for report := range wp.outputChan {
		wp.mu.RLock()
		reporters := wp.reporters
		observers := wp.observers
		subscribers := wp.subscribers
		wp.mu.RUnlock()

		for _, r := range reporters {
			if err := r.Send(ctx, report); err != nil {
				log.Debug().Err(err).Msg("Report send failed")
			}
		}

		result := "clean"
		switch {
		case report.Error != "":
			result = "error"
		case report.Stats.Redacted > 0:
			result = "redacted"
		}

		for _, o := range observers {
			o.IncrementProcessedByResult(result)
		}
		for _, sub := range subscribers {
			sub.OnReport(report)
		}
	}
}

// Submit queues a job, waiting up to the submit timeout for space.
func (wp *WorkerPool) Submit(job *ScrubJob) bool {
	wp.mu.RLock()
	running := wp.running
	wp.mu.RUnlock()

	if !running {
		return false
	}

	select {
	case wp.inputChan <- job:
		return true
	default:
	}

	timer := time.NewTimer(wp.submitTimeout)
	defer timer.Stop()
	select {
	case wp.inputChan <- job:
		return true
	case <-timer.C:
		return false
	case <-wp.stopChan:
		return false
	}
}

// SubmitBlocking blocks until the job is queued, ctx is cancelled or the
// pool stops.
func (wp *WorkerPool) SubmitBlocking(ctx context.Context, job *ScrubJob) bool {
	wp.mu.RLock()
	running := wp.running
	wp.mu.RUnlock()

	if !running {
		return false
	}

	select {
	case wp.inputChan <- job:
		return true
	case <-ctx.Done():
		return false
	case <-wp.stopChan:
		return false
	}
}

// Stop finishes queued jobs, delivers their reports and releases
// resources. Idempotent. Do not call Submit concurrently with Stop.
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		wp.mu.Lock()
		wp.running = false
		wp.mu.Unlock()

		close(wp.stopChan)
		close(wp.inputChan)
		wp.workers.Wait()

		close(wp.outputChan)
		wp.dispatcher.Wait()

		wp.mu.RLock()
		reporters := wp.reporters
		wp.mu.RUnlock()
		for _, r := range reporters {
			if err := r.Flush(); err != nil {
				log.Error().Err(err).Msg("Failed to flush reporter")
			}
		}

		if wp.quarantine != nil {
			if err := wp.quarantine.Close(); err != nil {
				log.Error().Err(err).Msg("Failed to close quarantine writer")
			}
		}

		log.Info().
			Int64("processed", wp.processed.Load()).
			Int64("failed", wp.failed.Load()).
			Int64("panics", wp.panics.Load()).
			Msg("Worker pool stopped")
	})
}

func (wp *WorkerPool) IsRunning() bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	return wp.running
}

func (wp *WorkerPool) QueueLength() int {
	return len(wp.inputChan)
}

func (wp *WorkerPool) QueueCapacity() int {
	return wp.bufferSize
}

func (wp *WorkerPool) Processed() int64 {
	return wp.processed.Load()
}

func (wp *WorkerPool) Failed() int64 {
	return wp.failed.Load()
}

func (wp *WorkerPool) Panics() int64 {
	return wp.panics.Load()
}

func (wp *WorkerPool) AddReporter(r ports.Reporter) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.reporters = append(wp.reporters, r)
}

func (wp *WorkerPool) AddObserver(o ports.ProcessingObserver) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.observers = append(wp.observers, o)
}

func (wp *WorkerPool) AddSubscriber(sub ports.ReportSubscriber) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.subscribers = append(wp.subscribers, sub)
}
