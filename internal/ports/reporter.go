// Package ports defines the interfaces between the sanitizing core and the
// infrastructure around it (input sources, report sinks, metrics).
//
// Implementations live in internal/adapters/. The core in internal/app only
// depends on these contracts.
package ports

import (
	"context"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// Reporter delivers per-input reports to an output destination.
//
// Implementations:
//   - JSONReporter: Writes reports as JSON lines to a file or stdout
//
// Thread Safety: Implementations MUST be safe for concurrent Send() calls.
type Reporter interface {
	// Send dispatches a report.
	//
	// Returns:
	//   - nil on success
	//   - Error if dispatch fails (caller logs and continues)
	Send(ctx context.Context, report *domain.Report) error

	// Flush forces buffered reports to the destination.
	Flush() error

	// Close flushes and releases resources.
	Close() error
}

// MetricsCollector receives operational metrics from the sanitizing core.
// Implemented by the Prometheus adapter.
//
// Thread Safety: All methods MUST be safe for concurrent calls.
type MetricsCollector interface {
	// ObserveLine records one sanitized line.
	//
	// Parameters:
	//   - redacted: number of redacted fragments in the line
	//   - allowed: number of allowed escape sequences kept
	//   - inputBytes, outputBytes: sizes before and after sanitizing
	ObserveLine(redacted, allowed, inputBytes, outputBytes int)

	// ObserveProcessingTime records per-line latency in seconds.
	ObserveProcessingTime(seconds float64)

	// IncrementReloads counts configuration reloads by outcome
	// ("applied" or "rejected").
	IncrementReloads(outcome string)
}

// ReportSubscriber receives every report produced by a batch run.
type ReportSubscriber interface {
	OnReport(report *domain.Report)
}
