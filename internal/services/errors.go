package services

import "errors"

// Pipeline error taxonomy. Every per-candidate failure wraps one of
// these sentinels so callers can classify outcomes with errors.Is
// without string matching.
var (
	// ErrTransientFetch: no content source for the candidate was
	// reachable. The pipeline performs no in-process retries; re-running
	// the command is the retry mechanism.
	ErrTransientFetch = errors.New("content fetch failed")

	// ErrExtraction: the language-model output was unparsable or
	// schema-incomplete. The raw response is archived for diagnostics.
	ErrExtraction = errors.New("extraction failed")

	// ErrIncompleteData: required fields (city/country) are missing.
	// Raised before any write.
	ErrIncompleteData = errors.New("incomplete event data")

	// ErrDuplicate: an event already exists for the resolved
	// (place, start date) pair. A classified outcome, not a failure.
	ErrDuplicate = errors.New("duplicate event")

	// ErrPersistence: constraint violation or partial write. The commit
	// transaction guarantees nothing is left half-written.
	ErrPersistence = errors.New("persistence failed")
)
