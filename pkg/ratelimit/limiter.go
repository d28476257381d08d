// Package ratelimit provides a token-bucket limiter for pacing outbound
// calls to a rate-limited HTTP API.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter: tokens accrue at rate per second
// up to a burst ceiling, and each call consumes one token. It exists to
// keep one exchange client's request volume under the family's documented
// REST budget (both CH and XT families advertise limits in the same
// neighborhood — see newClientLimiter) without the engine tracking
// per-endpoint quotas itself.
//
//	limiter := NewRateLimiter(10, 20) // 10 req/sec, burst 20
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // ctx cancelled while waiting for a token
//	}
type RateLimiter struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter builds a limiter admitting rate requests/sec with room
// for a burst of up to burst requests. burst should usually be 1.5-2x
// rate so a quiet client can catch up after an idle stretch.
func NewRateLimiter(rate, burst float64) *RateLimiter {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}

	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst, // start with a full bucket
		lastRefill: time.Now(),
	}
}

// refill tops up tokens proportional to elapsed time. Callers must hold mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()

	rl.tokens += elapsed * rl.rate
	if rl.tokens > rl.burst {
		rl.tokens = rl.burst
	}
	rl.lastRefill = now
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		rl.refill()

		if rl.tokens >= 1 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.mu.Unlock()

		select {
		case <-time.After(waitTime):
			continue
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Allow reports whether a token is available right now, consuming one if
// so, without blocking.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// Tokens returns the current number of available tokens, for tests and
// diagnostics.
func (rl *RateLimiter) Tokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()
	return rl.tokens
}
