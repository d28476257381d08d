package exchange

import "tradebotengine/pkg/ratelimit"

// newClientLimiter returns the per-client request budget: 10 requests/sec
// with a burst of 20. Both families document limits in this neighborhood
// for general REST endpoints; order placement pacing (the stabilizer's 10s
// ladder gaps, PlaceBatch's 500ms pacing, etc.) is not done by this
// limiter but by the strategies and client methods with their own sleeps.
func newClientLimiter() *ratelimit.RateLimiter {
	return ratelimit.NewRateLimiter(10, 20)
}
