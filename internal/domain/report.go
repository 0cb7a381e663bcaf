package domain

import (
	crypto_rand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/xoelrdgz/safeterm/pkg/sanitize"
)

// Report summarizes what happened to one input: how it was sanitized, what
// was found in it and where the sanitized copy went.
type Report struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Output    string         `json:"output,omitempty"`
	Stats     sanitize.Stats `json:"stats"`
	// VisibleBytes is how much of the raw input survives a terminal's
	// escape parser, i.e. what a reader would actually see.
	VisibleBytes int       `json:"visible_bytes"`
	Findings     []Finding `json:"findings,omitempty"`
	// Repeats counts findings left out because the same sequence was
	// already reported.
	Repeats int    `json:"repeats,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewReport(source string) *Report {
	return &Report{
		ID:        generateReportID(),
		Timestamp: time.Now().UTC(),
		Source:    source,
	}
}

func (r *Report) AddFindings(findings ...Finding) {
	r.Findings = append(r.Findings, findings...)
}

// SortFindings orders findings by offset, most severe first on ties.
func (r *Report) SortFindings() {
	sort.SliceStable(r.Findings, func(i, j int) bool {
		a, b := r.Findings[i], r.Findings[j]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		return a.Severity.Rank() > b.Severity.Rank()
	})
}

// MaxSeverity returns the most severe finding level, or "" without findings.
func (r *Report) MaxSeverity() Severity {
	var max Severity
	for _, f := range r.Findings {
		if f.Severity.Rank() > max.Rank() {
			max = f.Severity
		}
	}
	return max
}

// CountByClass tallies findings per injection class.
func (r *Report) CountByClass() map[InjectionClass]int {
	counts := make(map[InjectionClass]int)
	for _, f := range r.Findings {
		counts[f.Class]++
	}
	return counts
}

func (r *Report) SetError(err error) {
	if err != nil {
		r.Error = err.Error()
	}
}

func (r *Report) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func (r *Report) ToJSONPretty() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

var reportCounter atomic.Uint64

func generateReportID() string {
	var randBytes [4]byte
	if _, err := crypto_rand.Read(randBytes[:]); err != nil {
		return fmt.Sprintf("%s-%d-00000000",
			time.Now().UTC().Format("20060102150405"),
			reportCounter.Add(1))
	}
	return fmt.Sprintf("%s-%d-%08x",
		time.Now().UTC().Format("20060102150405"),
		reportCounter.Add(1),
		binary.BigEndian.Uint32(randBytes[:]))
}
