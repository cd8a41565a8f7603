package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/amishk599/jobpilot/internal/model"
)

// ErrRetryExhausted tags the error returned once a policy's attempt budget is spent.
var ErrRetryExhausted = errors.New("retry exhausted")

// Policy configures Do. It is a read-only value shared between callers.
type Policy struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // cap for the exponential delay, zero means uncapped
	JitterRatio float64       // delay is scaled by 1 ± JitterRatio
	Retryable   func(error) bool
}

// DefaultSourcePolicy is used for source fetches when no override is configured.
var DefaultSourcePolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   2 * time.Second,
	MaxDelay:    30 * time.Second,
	JitterRatio: 0.3,
	Retryable:   SourceRetryable,
}

// DefaultStepPolicy is used for platform steps. Browser-like steps are rarely
// safe to repeat more than once or twice.
var DefaultStepPolicy = Policy{
	MaxAttempts: 2,
	BaseDelay:   time.Second,
	MaxDelay:    5 * time.Second,
	JitterRatio: 0.2,
	Retryable:   StepRetryable,
}

// ExhaustedError is returned when every attempt failed with a retryable error.
// It matches ErrRetryExhausted and unwraps to the last error.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetryExhausted, e.Err}
}

// Delay returns the backoff before attempt n (n >= 2) for a jitter draw r in
// [-1, 1]: min(MaxDelay, BaseDelay*2^(n-2)) * (1 + r*JitterRatio).
func (p Policy) Delay(n int, r float64) time.Duration {
	if n < 2 {
		return 0
	}
	delay := p.BaseDelay
	for i := 2; i < n; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			break
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return time.Duration(float64(delay) * (1 + r*p.JitterRatio))
}

// backoffDelay picks the delay before attempt n. A Retry-After hint from a
// rate-limited response takes precedence, capped at MaxDelay.
func (p Policy) backoffDelay(n int, err error) time.Duration {
	if hint := retryAfter(err); hint > 0 {
		if p.MaxDelay > 0 && hint > p.MaxDelay {
			return p.MaxDelay
		}
		return hint
	}
	return p.Delay(n, rand.Float64()*2-1)
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return !errors.Is(err, context.Canceled)
	}
	return p.Retryable(err)
}

// Do runs op until it succeeds, returns a non-retryable error, or the policy's
// attempt budget is spent. Non-retryable errors are returned unchanged.
// Cancelling ctx during a backoff wait aborts immediately.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	var zero T
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if !p.retryable(err) {
			return zero, err
		}
		if attempt >= maxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := p.backoffDelay(attempt+1, err)
		if logger != nil {
			logger.Warn("retrying after transient error",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"delay", delay,
				"error", err,
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("retry cancelled: %w", errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
}

func retryAfter(err error) time.Duration {
	var srcErr *model.SourceError
	if errors.As(err, &srcErr) && srcErr.RetryAfter > 0 {
		return srcErr.RetryAfter
	}
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}
	return 0
}

// ParseRetryAfter parses a Retry-After header value in seconds (e.g. "120").
// It returns zero if the value is absent or unparseable.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
