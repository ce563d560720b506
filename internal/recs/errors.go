package recs

import "errors"

// Engine outcome sentinels. Neither is a failure: both mark normal outcomes
// that route a strategy into its fallback chain or an empty result.
var (
	// ErrInsufficientSignal reports that a user's signal volume is below a
	// strategy's eligibility floor.
	ErrInsufficientSignal = errors.New("insufficient listening signal")

	// ErrCandidatePoolExhausted reports that fewer candidates than the
	// strategy's viable minimum survived exclusion.
	ErrCandidatePoolExhausted = errors.New("candidate pool exhausted")
)
