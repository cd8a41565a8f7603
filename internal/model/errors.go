package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicate is returned by a Ledger when the job is already recorded.
	ErrDuplicate = errors.New("duplicate application record")
	// ErrMissingCredential means the credential provider has no entry for a platform.
	ErrMissingCredential = errors.New("missing-credential")
	// ErrNoSources means no source adapter is enabled.
	ErrNoSources = errors.New("no sources enabled")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// SourceErrorKind classifies SourceAdapter failures.
type SourceErrorKind int

const (
	SourceNetwork SourceErrorKind = iota
	SourceRateLimit
	SourceAuth
	SourceParse
)

func (k SourceErrorKind) String() string {
	switch k {
	case SourceNetwork:
		return "network"
	case SourceRateLimit:
		return "rate limited"
	case SourceAuth:
		return "authentication"
	case SourceParse:
		return "parse"
	}
	return "unknown"
}

// SourceError is returned by SourceAdapters. Network and RateLimit kinds are
// retryable; Auth and Parse are not.
type SourceError struct {
	Kind       SourceErrorKind
	Source     string
	RetryAfter time.Duration
	Err        error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Source, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// StepErrorKind classifies PlatformSession failures.
type StepErrorKind int

const (
	StepNavigation StepErrorKind = iota
	StepElementNotFound
	StepTimeout
	StepSubmission
	StepAuth
)

func (k StepErrorKind) String() string {
	switch k {
	case StepNavigation:
		return "navigation failed"
	case StepElementNotFound:
		return "element not found"
	case StepTimeout:
		return "timed out"
	case StepSubmission:
		return "submission failed"
	case StepAuth:
		return "login rejected"
	}
	return "unknown"
}

// StepError is returned by PlatformSession steps. Submission and Auth kinds
// are fatal; the rest are retryable.
type StepError struct {
	Kind StepErrorKind
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError is shorthand for &StepError{Kind: kind, Err: fmt.Errorf(format, args...)}.
func NewStepError(kind StepErrorKind, format string, args ...any) *StepError {
	return &StepError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// SkipError ends an application in the Skipped state with Reason.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string {
	return "skipped: " + e.Reason
}
