package ports

import (
	"context"

	"github.com/xoelrdgz/safeterm/internal/domain"
)

// LineReader streams lines of untrusted text from a source.
//
// Start returns a line channel and an error channel; both are closed when the
// reader stops, either through Stop, context cancellation or end of input.
type LineReader interface {
	Start(ctx context.Context) (<-chan *domain.Line, <-chan error)
	Stop() error
}

// LineSubscriber is notified of every line a follower writes. Called on the
// follower's goroutine, so implementations must return quickly.
type LineSubscriber interface {
	OnLine(event *domain.LineEvent)
}

// OffsetStore remembers how far a followed file has been written out, so a
// later run can resume after the last line instead of at the end.
//
// Implementations:
//   - BoltOffsetStore: one bbolt key per absolute file path
type OffsetStore interface {
	// Load returns the saved offset; ok is false when none was saved.
	Load(source string) (offset int64, ok bool, err error)
	Save(source string, offset int64) error
}
