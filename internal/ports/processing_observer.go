package ports

// ProcessingObserver is notified of the outcome of every processed input.
// Used to track results for all inputs, not only the dirty ones.
type ProcessingObserver interface {
	// IncrementProcessedByResult records the result of processing one input.
	//
	// Parameters:
	//   - result: "clean", "redacted" or "error"
	//
	// Thread Safety: Implementations MUST be safe for concurrent calls.
	IncrementProcessedByResult(result string)
}
