// Package ratelimit paces requests against cdon.fi. A randomized delay
// between a floor and a ceiling looks less mechanical than a fixed interval.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type RateLimiter interface {
	Wait(ctx context.Context) error
	SetDelay(min, max time.Duration)
}

type SimpleRateLimiter struct {
	minDelay   time.Duration
	maxDelay   time.Duration
	lastAction time.Time
	mu         sync.Mutex
	jitter     bool
}

func NewSimpleRateLimiter(minDelay, maxDelay time.Duration) *SimpleRateLimiter {
	return &SimpleRateLimiter{
		minDelay: minDelay,
		maxDelay: maxDelay,
		jitter:   true,
	}
}

// Wait blocks until at least the current delay has passed since the previous
// call. The first call returns immediately.
func (r *SimpleRateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := time.Since(r.lastAction)
	delay := r.calculateDelay()

	if elapsed < delay {
		waitTime := delay - elapsed

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	r.lastAction = time.Now()
	return nil
}

func (r *SimpleRateLimiter) SetDelay(min, max time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.minDelay = min
	r.maxDelay = max
}

func (r *SimpleRateLimiter) calculateDelay() time.Duration {
	if !r.jitter || r.minDelay >= r.maxDelay {
		return r.minDelay
	}

	delta := r.maxDelay - r.minDelay
	jitter := time.Duration(rand.Int63n(int64(delta)))
	return r.minDelay + jitter
}
