package ports

import "github.com/xoelrdgz/safeterm/internal/domain"

// Auditor locates terminal injection sequences in raw text without changing
// it.
//
// Implementations:
//   - SignatureAuditor: Aho-Corasick signature table plus a control-byte sweep
//
// Thread Safety: Implementations MUST be safe for concurrent Audit() calls.
type Auditor interface {
	// Audit returns every finding in text, ordered by byte offset.
	//
	// Contract:
	//   - MUST NOT retain text
	//   - Offsets are byte offsets into text
	Audit(text string) []domain.Finding

	// Name identifies the auditor in logs and reports.
	Name() string
}
