package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/jobpilot/internal/model"
)

// KeyedLimiter enforces a minimum gap between calls sharing the same key
// (a source name or a platform name).
type KeyedLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	minDelay  time.Duration
	overrides map[string]time.Duration
}

// NewKeyedLimiter creates a limiter that allows one call per minDelay per key.
// overrides maps individual keys to their own delay. A zero delay disables limiting.
func NewKeyedLimiter(minDelay time.Duration, overrides map[string]time.Duration) *KeyedLimiter {
	return &KeyedLimiter{
		limiters:  make(map[string]*rate.Limiter),
		minDelay:  minDelay,
		overrides: overrides,
	}
}

func (k *KeyedLimiter) limiterFor(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	if lim, ok := k.limiters[key]; ok {
		return lim
	}
	delay := k.minDelay
	if d, ok := k.overrides[key]; ok {
		delay = d
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	lim := rate.NewLimiter(limit, 1)
	k.limiters[key] = lim
	return lim
}

// Wait blocks until a call for key is allowed or ctx is done.
func (k *KeyedLimiter) Wait(ctx context.Context, key string) error {
	if err := k.limiterFor(key).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %s: %w", key, err)
	}
	return nil
}

// RateLimitedSource is a decorator that waits on the shared limiter before
// delegating to the wrapped SourceAdapter.
type RateLimitedSource struct {
	inner   model.SourceAdapter
	limiter *KeyedLimiter
}

// NewRateLimitedSource wraps a SourceAdapter with per-source rate limiting.
func NewRateLimitedSource(inner model.SourceAdapter, limiter *KeyedLimiter) *RateLimitedSource {
	return &RateLimitedSource{inner: inner, limiter: limiter}
}

func (s *RateLimitedSource) Name() string { return s.inner.Name() }

// Search waits for the limiter, then delegates to the wrapped source.
func (s *RateLimitedSource) Search(ctx context.Context, query, location string, limit int) ([]model.Job, error) {
	if err := s.limiter.Wait(ctx, s.inner.Name()); err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, query, location, limit)
}
