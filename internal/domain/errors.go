package domain

import "fmt"

// ExtractionError marks malformed or empty extractor output. It is fatal for
// the run it would have fed: no pipeline stage executes.
type ExtractionError struct {
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Reason, e.Err)
	}
	return "extraction: " + e.Reason
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// GroupingError marks a data-contract violation inside one batch, such as a
// relationship endpoint naming a person absent from the batch. It aborts the
// batch, not the process.
type GroupingError struct {
	Reason string
}

func (e *GroupingError) Error() string { return "grouping: " + e.Reason }
