package audit

import (
	"github.com/xoelrdgz/safeterm/internal/domain"
	"github.com/xoelrdgz/safeterm/pkg/bloomfilter"
)

// Deduplicator drops findings whose class and exact sequence were already
// reported. Memory stays fixed however many distinct sequences an input
// holds; the price is that a rare new sequence may be taken for a repeat.
type Deduplicator struct {
	seen *bloomfilter.Filter
}

func NewDeduplicator(expected uint) *Deduplicator {
	return &Deduplicator{seen: bloomfilter.New(expected, 0.001)}
}

// Filter returns the first occurrence of each sequence and how many
// repeats were dropped. findings keeps its order.
func (d *Deduplicator) Filter(findings []domain.Finding) ([]domain.Finding, int) {
	kept := findings[:0:0]
	dropped := 0
	for _, f := range findings {
		if d.seen.TestAndAdd(string(f.Class) + "\x00" + f.Sequence) {
			dropped++
			continue
		}
		kept = append(kept, f)
	}
	return kept, dropped
}
