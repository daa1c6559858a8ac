// Package ratelimit defines the fixed-window rate limiting contract.
//
// Counters are keyed by "{tenantId}:{graphName}" and reset at fixed time
// boundaries. The limiter is approximate: bursts up to twice the limit are
// possible across a window edge. This is the accepted trade-off for O(1)
// cost per check.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a single quota check.
type Result struct {
	// Allowed reports whether the request fits in the current window.
	Allowed bool
	// Limit is the window limit the check was evaluated against.
	Limit int
	// Remaining is the quota left in the current window, never negative.
	Remaining int
	// ResetAt is the end of the current window.
	ResetAt time.Time
	// RetryAfter is the whole seconds until ResetAt; set only on denial.
	RetryAfter int
}

// Store is a fixed-window counter backend. Implementations must make the
// increment-and-expire step atomic for concurrent checks on the same key.
type Store interface {
	// Check increments the counter for key in the current window and
	// evaluates it against limit.
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// WindowBounds computes the fixed-window bucket index and window end for a
// point in time. Both backends share this arithmetic; only counter storage
// differs between them.
func WindowBounds(now time.Time, window time.Duration) (bucket int64, resetAt time.Time) {
	bucket = now.UnixMilli() / window.Milliseconds()
	resetAt = time.UnixMilli((bucket + 1) * window.Milliseconds())
	return bucket, resetAt
}

// Evaluate turns a post-increment count into a Result.
func Evaluate(count int64, limit int, resetAt time.Time, now time.Time) Result {
	res := Result{
		Allowed: count <= int64(limit),
		Limit:   limit,
		ResetAt: resetAt,
	}

	remaining := int64(limit) - count
	if remaining > 0 {
		res.Remaining = int(remaining)
	}

	if !res.Allowed {
		secs := (resetAt.Sub(now).Milliseconds() + 999) / 1000
		if secs < 0 {
			secs = 0
		}
		res.RetryAfter = int(secs)
	}

	return res
}
