package backfill

import "fmt"

// FailurePolicy decides how a failed fetch affects the processed set.
type FailurePolicy string

const (
	// PolicySkip marks a failed identifier processed; it is never retried
	// and contributes no records.
	PolicySkip FailurePolicy = "skip"
	// PolicyRetry leaves a failed identifier unprocessed. It is not retried
	// within the run, and the checkpoint is kept so the next run retries it.
	PolicyRetry FailurePolicy = "retry"
)

// ParsePolicy converts a configuration string to a FailurePolicy. The
// empty string selects PolicySkip.
func ParsePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(s) {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyRetry:
		return PolicyRetry, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q (want skip or retry)", s)
	}
}

func (p FailurePolicy) marksFailed() bool {
	return p != PolicyRetry
}
