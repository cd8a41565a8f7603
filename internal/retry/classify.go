package retry

import (
	"context"
	"errors"

	"github.com/amishk599/jobpilot/internal/model"
)

// SourceRetryable reports whether a source fetch error is transient.
// Network and rate-limit failures are; authentication and parse failures are not.
func SourceRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Caller cancellation is never retried.
	if errors.Is(err, context.Canceled) {
		return false
	}

	var srcErr *model.SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Kind == model.SourceNetwork || srcErr.Kind == model.SourceRateLimit
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 429 || httpErr.StatusCode >= 500
	}

	// Untyped errors (DNS, connection reset, per-attempt deadline) are treated as network failures.
	return true
}

// StepRetryable reports whether a platform step error may be retried.
// Submission errors are fatal once a submit was sent, to avoid double-applying.
func StepRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, model.ErrMissingCredential) {
		return false
	}

	var skip *model.SkipError
	if errors.As(err, &skip) {
		return false
	}

	var stepErr *model.StepError
	if errors.As(err, &stepErr) {
		return stepErr.Kind != model.StepSubmission && stepErr.Kind != model.StepAuth
	}
	return true
}
